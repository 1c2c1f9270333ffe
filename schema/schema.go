// Package schema defines the node and relationship type registry that every
// graph mutation is validated against. The type set is data, not Go types:
// source records arrive as untyped property maps and are checked at runtime
// against the registry before any store call is issued.
package schema

// PropertyType is the semantic type of a declared node property.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeDatetime PropertyType = "datetime"
	TypeFloat    PropertyType = "float"
	TypeInt      PropertyType = "int"
	TypeBool     PropertyType = "boolean"
	TypeList     PropertyType = "list"
	TypeJSON     PropertyType = "json"
)

// NodeTypeInfo declares a node label and its allowed property set.
type NodeTypeInfo struct {
	Label      string                  `json:"label"`
	Properties map[string]PropertyType `json:"properties"`
}

// RelationshipTypeInfo declares a relationship type, the labels it may
// connect, and its allowed property set.
type RelationshipTypeInfo struct {
	Type         string   `json:"type"`
	ValidSources []string `json:"valid_sources"`
	ValidTargets []string `json:"valid_targets"`
	Properties   []string `json:"properties"`
}

// RelationshipIndex names a relationship property that gets a store index.
type RelationshipIndex struct {
	Type     string
	Property string
}

// Node labels.
const (
	User          = "User"
	Person        = "Person"
	Organization  = "Organization"
	Skill         = "Skill"
	Certification = "Certification"
	Language      = "Language"
	Message       = "Message"
	Event         = "Event"
	Location      = "Location"
	Task          = "Task"
	Channel       = "Channel"
	Thread        = "Thread"
)

// Relationship types.
const (
	UserKnows           = "USER_KNOWS"
	UserConnectedTo     = "USER_CONNECTED_TO"
	UserCommunicatesVia = "USER_COMMUNICATES_VIA"
	UserParticipatesIn  = "USER_PARTICIPATES_IN"
	UserVisits          = "USER_VISITS"
	UserManages         = "USER_MANAGES"
	ConnectedTo         = "CONNECTED_TO"
	AffiliatedWith      = "AFFILIATED_WITH"
	ParticipatesIn      = "PARTICIPATES_IN"
	LocatedAt           = "LOCATED_AT"
	Authored            = "AUTHORED"
	Received            = "RECEIVED"
	MentionedIn         = "MENTIONED_IN"
	RelatedTo           = "RELATED_TO"
	SameAs              = "SAME_AS"
	ExtractedFrom       = "EXTRACTED_FROM"
	AssignedTo          = "ASSIGNED_TO"
	DependsOn           = "DEPENDS_ON"
	ModifiedBy          = "MODIFIED_BY"
	HasSubtask          = "HAS_SUBTASK"
	HasSkill            = "HAS_SKILL"
	HasCertification    = "HAS_CERTIFICATION"
	Speaks              = "SPEAKS"
	WorkedAt            = "WORKED_AT"
	LearntAt            = "LEARNT_AT"
)

// Node status values.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusCanceled = "canceled"
)

// Task status values.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskCanceled   = "canceled"
)

// bookkeepingProperties are maintained by the engine itself and allowed on
// every node type in addition to its declared property set.
var bookkeepingProperties = map[string]PropertyType{
	"merged":               TypeBool,
	"merged_into":          TypeString,
	"merged_at":            TypeDatetime,
	"merged_count":         TypeInt,
	"status":               TypeString,
	"archive_reference":    TypeString,
	"archived_at":          TypeDatetime,
	"has_archived_content": TypeBool,
	"last_accessed_at":     TypeDatetime,
	"access_count":         TypeInt,
	"confidence":           TypeFloat,
	"updated_at":           TypeDatetime,
}

// IsBookkeepingProperty reports whether the property is engine-maintained
// and therefore valid on any node type.
func IsBookkeepingProperty(name string) bool {
	_, ok := bookkeepingProperties[name]
	return ok
}
