package outbox

const behaviorEntryChangeSchema = `{
  "type": "object",
  "title": "BehaviorEntryChange",
  "properties": {
    "id": {"type": "string"},
    "user_id": {"type": "string"},
    "timestamp": {"type": "string", "format": "date-time"},
    "activity": {"type": "string"},
    "biases_detected": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number"},
    "notes": {"type": ["string", "null"]},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["id", "user_id", "timestamp", "activity", "biases_detected", "confidence", "created_at"],
  "additionalProperties": false
}`

const shoppingPatternChangeSchema = `{
  "type": "object",
  "title": "ShoppingPatternChange",
  "properties": {
    "id": {"type": "string"},
    "user_id": {"type": "string"},
    "category": {"type": "string"},
    "amount": {"type": "number"},
    "purchase_date": {"type": "string", "format": "date-time"},
    "bias_type": {"type": "string"},
    "impulse": {"type": "boolean"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["id", "user_id", "category", "amount", "purchase_date", "bias_type", "impulse", "created_at"],
  "additionalProperties": false
}`

const newsSourceChangeSchema = `{
  "type": "object",
  "title": "NewsSourceChange",
  "properties": {
    "id": {"type": "string"},
    "user_id": {"type": "string"},
    "name": {"type": "string"},
    "bias_score": {"type": "number"},
    "articles_read": {"type": "integer"},
    "category": {"type": "string"},
    "reliability": {"type": "number"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["id", "user_id", "name", "bias_score", "articles_read", "category", "reliability", "created_at"],
  "additionalProperties": false
}`

const challengeChangeSchema = `{
  "type": "object",
  "title": "ChallengeChange",
  "properties": {
    "id": {"type": "string"},
    "user_id": {"type": "string"},
    "title": {"type": "string"},
    "description": {"type": ["string", "null"]},
    "type": {"type": "string"},
    "progress": {"type": "integer"},
    "target": {"type": "integer"},
    "completed": {"type": "boolean"},
    "reward": {"type": ["string", "null"]},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["id", "user_id", "title", "type", "progress", "target", "completed", "created_at"],
  "additionalProperties": false
}`
