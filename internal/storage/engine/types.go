package engine

// Row types mirror the metadata-store schema. Timestamps are unix
// nanoseconds; JSON-valued columns are stored as raw text and decoded at
// adapter boundaries.

// Bucket is an S3-style bucket row.
type Bucket struct {
	Name       string  `db:"name"`
	Region     string  `db:"region"`
	Versioning string  `db:"versioning"`
	Policy     *string `db:"policy"`
	ACL        *string `db:"acl"`
	CreatedAt  int64   `db:"created_at"`
}

// Versioning states for buckets.
const (
	VersioningDisabled  = "Disabled"
	VersioningEnabled   = "Enabled"
	VersioningSuspended = "Suspended"
)

// Object is one version row of an S3-style object.
type Object struct {
	ID             int64  `db:"id"`
	Bucket         string `db:"bucket"`
	Key            string `db:"key"`
	VersionID      string `db:"version_id"`
	IsLatest       bool   `db:"is_latest"`
	IsDeleteMarker bool   `db:"is_delete_marker"`
	ContentHash    string `db:"content_hash"`
	ContentLength  int64  `db:"content_length"`
	ContentType    string `db:"content_type"`
	ETag           string `db:"etag"`
	Metadata       string `db:"metadata"`
	LastModified   int64  `db:"last_modified"`
}

// Upload is an in-progress multipart upload.
type Upload struct {
	UploadID    string `db:"upload_id"`
	Bucket      string `db:"bucket"`
	Key         string `db:"key"`
	ContentType string `db:"content_type"`
	Metadata    string `db:"metadata"`
	InitiatedAt int64  `db:"initiated_at"`
}

// Part is one uploaded part of a multipart upload.
type Part struct {
	UploadID    string `db:"upload_id"`
	PartNumber  int    `db:"part_number"`
	ContentHash string `db:"content_hash"`
	Size        int64  `db:"size"`
	ETag        string `db:"etag"`
	UploadedAt  int64  `db:"uploaded_at"`
}

// KVTable is a DynamoDB/Cosmos-style table.
type KVTable struct {
	Name                 string `db:"name"`
	AttributeDefinitions string `db:"attribute_definitions"`
	KeySchema            string `db:"key_schema"`
	CreatedAt            int64  `db:"created_at"`
}

// KVItem is one item; Payload is the opaque attribute-value JSON.
type KVItem struct {
	TableName    string `db:"table_name"`
	PartitionKey string `db:"partition_key"`
	SortKey      string `db:"sort_key"`
	Payload      string `db:"payload"`
	ETag         string `db:"etag"`
	UpdatedAt    int64  `db:"updated_at"`
}

// Queue is an SQS-style queue.
type Queue struct {
	Name              string `db:"name"`
	URL               string `db:"url"`
	ARN               string `db:"arn"`
	VisibilityTimeout int    `db:"visibility_timeout"`
	RetentionPeriod   int    `db:"retention_period"`
	DelaySeconds      int    `db:"delay_seconds"`
	ReceiveWait       int    `db:"receive_wait"`
	CreatedAt         int64  `db:"created_at"`
}

// Message is a queue message row. A message is visible to receivers when
// visible_at <= now.
type Message struct {
	ID            string `db:"id"`
	Queue         string `db:"queue"`
	Body          string `db:"body"`
	SentAt        int64  `db:"sent_at"`
	VisibleAt     int64  `db:"visible_at"`
	ReceiptHandle string `db:"receipt_handle"`
	ReceiveCount  int    `db:"receive_count"`
}

// Secret is a Secrets Manager secret.
type Secret struct {
	ARN         string `db:"arn"`
	Name        string `db:"name"`
	Description string `db:"description"`
	CreatedAt   int64  `db:"created_at"`
}

// SecretVersion is one version of a secret's value. VersionStages is a JSON
// list; at most one version per secret carries "AWSCURRENT".
type SecretVersion struct {
	SecretARN     string  `db:"secret_arn"`
	VersionID     string  `db:"version_id"`
	StringValue   *string `db:"string_value"`
	BinaryValue   []byte  `db:"binary_value"`
	VersionStages string  `db:"version_stages"`
	CreatedAt     int64   `db:"created_at"`
}

// KMS key states.
const (
	KeyStateEnabled         = "Enabled"
	KeyStateDisabled        = "Disabled"
	KeyStatePendingDeletion = "PendingDeletion"
)

// Key is a KMS key row.
type Key struct {
	ID           string `db:"id"`
	ARN          string `db:"arn"`
	Description  string `db:"description"`
	KeyState     string `db:"key_state"`
	KeyUsage     string `db:"key_usage"`
	DeletionDate *int64 `db:"deletion_date"`
	Tags         string `db:"tags"`
	CreatedAt    int64  `db:"created_at"`
}

// Bus is an event bus.
type Bus struct {
	Name      string `db:"name"`
	ARN       string `db:"arn"`
	CreatedAt int64  `db:"created_at"`
}

// Rule is an event rule on a bus.
type Rule struct {
	Bus         string `db:"bus"`
	Name        string `db:"name"`
	ARN         string `db:"arn"`
	Pattern     string `db:"pattern"`
	Schedule    string `db:"schedule"`
	State       string `db:"state"`
	Description string `db:"description"`
}

// Target is one delivery target of a rule.
type Target struct {
	Bus      string `db:"bus"`
	Rule     string `db:"rule"`
	TargetID string `db:"target_id"`
	ARN      string `db:"arn"`
	Input    string `db:"input"`
}

// HistoryEntry is an append-only record of a published event.
type HistoryEntry struct {
	ID         string `db:"id"`
	Bus        string `db:"bus"`
	Source     string `db:"source"`
	DetailType string `db:"detail_type"`
	Detail     string `db:"detail"`
	Resources  string `db:"resources"`
	RecordedAt int64  `db:"recorded_at"`
}

// StateMachine holds an ASL definition.
type StateMachine struct {
	ARN        string `db:"arn"`
	Name       string `db:"name"`
	Definition string `db:"definition"`
	RoleARN    string `db:"role_arn"`
	CreatedAt  int64  `db:"created_at"`
}

// Execution statuses.
const (
	ExecutionRunning   = "RUNNING"
	ExecutionSucceeded = "SUCCEEDED"
	ExecutionFailed    = "FAILED"
	ExecutionTimedOut  = "TIMED_OUT"
	ExecutionAborted   = "ABORTED"
)

// Execution is one run of a state machine.
type Execution struct {
	ARN             string  `db:"arn"`
	StateMachineARN string  `db:"state_machine_arn"`
	Name            string  `db:"name"`
	Status          string  `db:"status"`
	Input           string  `db:"input"`
	Output          *string `db:"output"`
	Error           *string `db:"error"`
	Cause           *string `db:"cause"`
	StartedAt       int64   `db:"started_at"`
	StoppedAt       *int64  `db:"stopped_at"`
}

// UserPool is a Cognito-style user pool.
type UserPool struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	CreatedAt int64  `db:"created_at"`
}

// User is a user within a pool.
type User struct {
	PoolID    string `db:"pool_id"`
	Username  string `db:"username"`
	Status    string `db:"status"`
	Enabled   bool   `db:"enabled"`
	CreatedAt int64  `db:"created_at"`
}

// UserAttribute is one name/value attribute of a user.
type UserAttribute struct {
	PoolID   string `db:"pool_id"`
	Username string `db:"username"`
	Name     string `db:"name"`
	Value    string `db:"value"`
}

// Group is a user group within a pool.
type Group struct {
	PoolID      string `db:"pool_id"`
	GroupName   string `db:"group_name"`
	Description string `db:"description"`
	CreatedAt   int64  `db:"created_at"`
}

// MetricRow is one appended metric datum; Dimensions is JSON.
type MetricRow struct {
	ID         int64   `db:"id"`
	Namespace  string  `db:"namespace"`
	Name       string  `db:"name"`
	Value      float64 `db:"value"`
	Unit       string  `db:"unit"`
	Dimensions string  `db:"dimensions"`
	Timestamp  int64   `db:"timestamp"`
}

// LogGroup is a CloudWatch Logs group.
type LogGroup struct {
	Name      string `db:"name"`
	ARN       string `db:"arn"`
	CreatedAt int64  `db:"created_at"`
}

// LogStream is a stream within a group.
type LogStream struct {
	GroupName  string `db:"group_name"`
	StreamName string `db:"stream_name"`
	CreatedAt  int64  `db:"created_at"`
}

// LogEvent is one appended log line. Timestamp is caller-supplied unix
// milliseconds, as on the wire.
type LogEvent struct {
	ID         int64  `db:"id"`
	GroupName  string `db:"group_name"`
	StreamName string `db:"stream_name"`
	Timestamp  int64  `db:"timestamp"`
	Message    string `db:"message"`
	IngestedAt int64  `db:"ingested_at"`
}

// SSMParameter is a Systems Manager parameter.
type SSMParameter struct {
	Name      string `db:"name"`
	Type      string `db:"type"`
	Value     string `db:"value"`
	Version   int64  `db:"version"`
	UpdatedAt int64  `db:"updated_at"`
}

// IAMUser is a minimal IAM user row.
type IAMUser struct {
	Name      string `db:"name"`
	ARN       string `db:"arn"`
	CreatedAt int64  `db:"created_at"`
}

// Topic is an SNS topic.
type Topic struct {
	ARN  string `db:"arn"`
	Name string `db:"name"`
}

// Subscription is an SNS subscription.
type Subscription struct {
	ARN      string `db:"arn"`
	TopicARN string `db:"topic_arn"`
	Protocol string `db:"protocol"`
	Endpoint string `db:"endpoint"`
}

// TargetGroup is a zero-provider load-balancer target group.
type TargetGroup struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Protocol  string `db:"protocol"`
	Port      int    `db:"port"`
	CreatedAt int64  `db:"created_at"`
}

// LBTarget is one registered backend of a target group.
type LBTarget struct {
	GroupID  string `db:"group_id"`
	TargetID string `db:"target_id"`
	Host     string `db:"host"`
	Port     int    `db:"port"`
	Weight   int    `db:"weight"`
	Healthy  bool   `db:"healthy"`
}

// Listener is a zero-provider listener bound to a local port.
type Listener struct {
	ID            string `db:"id"`
	Port          int    `db:"port"`
	TargetGroupID string `db:"target_group_id"`
	Protocol      string `db:"protocol"`
	CreatedAt     int64  `db:"created_at"`
}
