package outbox

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "name": {"type": "string"},
    "priority": {"type": "string"},
    "creator_id": {"type": "string"},
    "assignee_id": {"type": "string"},
    "due_date": {"type": "string", "format": "date-time"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "name", "priority", "creator_id", "created_at"],
  "additionalProperties": false
}`

const activityStatusChangedSchema = `{
  "type": "object",
  "title": "ActivityStatusChanged",
  "properties": {
    "activity_id": {"type": "string"},
    "actor_id": {"type": "string"},
    "previous_status": {"type": "string"},
    "new_status": {"type": "string"},
    "remarks": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "actor_id", "new_status", "remarks", "occurred_at"],
  "additionalProperties": false
}`
