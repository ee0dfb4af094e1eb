package record

// Document is a raw stored document as handed over by a storage backend.
// Values are plain Go values: strings, numbers, bools, time.Time, nested
// documents and slices. Wrapped encodings ({"$date": ...}, {"$numberInt": ...})
// are left untouched for the normalizer.
type Document = map[string]any

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

type QueryStatus string

const (
	QueryCompleted  QueryStatus = "completed"
	QueryError      QueryStatus = "error"
	QueryInProgress QueryStatus = "in_progress"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ErrorStatus string

const (
	ErrorUnresolved ErrorStatus = "unresolved"
	ErrorResolved   ErrorStatus = "resolved"
	ErrorIgnored    ErrorStatus = "ignored"
)

type ErrorLevel string

const (
	LevelError   ErrorLevel = "error"
	LevelWarning ErrorLevel = "warning"
	LevelInfo    ErrorLevel = "info"
)

var (
	UserStatuses  = []UserStatus{UserActive, UserInactive}
	QueryStatuses = []QueryStatus{QueryCompleted, QueryError, QueryInProgress}
	messageRoles  = []MessageRole{RoleUser, RoleAssistant}
	ErrorStatuses = []ErrorStatus{ErrorUnresolved, ErrorResolved, ErrorIgnored}
	errorLevels   = []ErrorLevel{LevelError, LevelWarning, LevelInfo}
)

// User is the canonical API shape of a dashboard user.
type User struct {
	ID          string     `json:"_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	DateJoined  string     `json:"dateJoined"`
	LastActive  string     `json:"lastActive"`
	TokenUsage  int64      `json:"tokenUsage"`
	TotalAmount string     `json:"totalAmount"`
	Status      UserStatus `json:"status"`
}

// Query is one assistant conversation.
type Query struct {
	ID         string         `json:"_id"`
	UserID     string         `json:"userId"`
	Prompt     string         `json:"prompt"`
	ModelUsed  string         `json:"modelUsed"`
	TokensUsed int64          `json:"tokensUsed"`
	Date       string         `json:"date"`
	Status     QueryStatus    `json:"status"`
	Messages   []Message      `json:"messages"`
	Metadata   *QueryMetadata `json:"metadata,omitempty"`
}

type QueryMetadata struct {
	TotalProcessingTime *float64      `json:"totalProcessingTime,omitempty"`
	Error               *string       `json:"error,omitempty"`
	Context             *QueryContext `json:"context,omitempty"`
}

type QueryContext struct {
	Documents []string `json:"documents,omitempty"`
	Apps      []string `json:"apps,omitempty"`
}

// Message is embedded in a Query and kept in stored (chronological) order.
type Message struct {
	Role      MessageRole      `json:"role"`
	Content   string           `json:"content"`
	Timestamp string           `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

type MessageMetadata struct {
	TokensUsed     *int64   `json:"tokensUsed,omitempty"`
	ModelUsed      *string  `json:"modelUsed,omitempty"`
	ProcessingTime *float64 `json:"processingTime,omitempty"`
}

// ErrorEvent is an application error aggregated by occurrence.
type ErrorEvent struct {
	ID          string         `json:"_id"`
	EventID     string         `json:"eventId,omitempty"`
	UserID      string         `json:"userId"`
	Title       string         `json:"title"`
	Type        string         `json:"type"`
	Status      ErrorStatus    `json:"status"`
	Environment string         `json:"environment,omitempty"`
	Level       ErrorLevel     `json:"level"`
	Message     string         `json:"message"`
	Stacktrace  string         `json:"stacktrace,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	User        *ErrorUser     `json:"user,omitempty"`
	Request     *ErrorRequest  `json:"request,omitempty"`
	Breadcrumbs []Breadcrumb   `json:"breadcrumbs,omitempty"`
	FirstSeen   string         `json:"firstSeen"`
	LastSeen    string         `json:"lastSeen"`
	Count       int64          `json:"count"`
	Release     string         `json:"release,omitempty"`
}

// ErrorUser is the user snapshot captured with an error, independent of the
// users collection.
type ErrorUser struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

type ErrorRequest struct {
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Data    map[string]any    `json:"data,omitempty"`
}

type Breadcrumb struct {
	Type      string `json:"type"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
