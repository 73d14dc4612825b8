// Package arn synthesizes the identifiers the emulated providers hand out:
// ARNs, queue URLs, request ids, and opaque tokens.
package arn

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountID is the fixed account every emulated resource belongs to.
const AccountID = "000000000000"

// DefaultRegion is used when a request does not carry a region.
const DefaultRegion = "us-east-1"

// Make builds arn:aws:<svc>:<region>:<account>:<suffix>.
func Make(service, region, suffix string) string {
	return fmt.Sprintf("arn:aws:%s:%s:%s:%s", service, region, AccountID, suffix)
}

// Bucket returns an S3 bucket ARN. S3 ARNs carry no region or account.
func Bucket(name string) string {
	return "arn:aws:s3:::" + name
}

// Queue returns an SQS queue ARN.
func Queue(region, name string) string {
	return Make("sqs", region, name)
}

// QueueURL returns the URL clients use to address a queue.
func QueueURL(endpoint, name string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(endpoint, "/"), AccountID, name)
}

// Secret returns a Secrets Manager ARN. The real service appends a random
// six-character suffix; emulated ARNs do the same so lookups by name and by
// ARN stay distinct.
func Secret(region, name string) string {
	return Make("secretsmanager", region, "secret:"+name+"-"+shortID())
}

// Key returns a KMS key ARN for the given key id.
func Key(region, keyID string) string {
	return Make("kms", region, "key/"+keyID)
}

// EventBus returns an EventBridge bus ARN.
func EventBus(region, name string) string {
	return Make("events", region, "event-bus/"+name)
}

// Rule returns an EventBridge rule ARN.
func Rule(region, bus, name string) string {
	if bus == "default" {
		return Make("events", region, "rule/"+name)
	}
	return Make("events", region, "rule/"+bus+"/"+name)
}

// StateMachine returns a Step Functions state machine ARN.
func StateMachine(region, name string) string {
	return Make("states", region, "stateMachine:"+name)
}

// Execution returns a Step Functions execution ARN.
func Execution(region, machineName, execName string) string {
	return Make("states", region, "execution:"+machineName+":"+execName)
}

// LogGroup returns a CloudWatch Logs group ARN.
func LogGroup(region, name string) string {
	return Make("logs", region, "log-group:"+name+":*")
}

// Topic returns an SNS topic ARN.
func Topic(region, name string) string {
	return Make("sns", region, name)
}

// IAMUser returns an IAM user ARN. IAM ARNs carry no region.
func IAMUser(name string) string {
	return fmt.Sprintf("arn:aws:iam::%s:user/%s", AccountID, name)
}

// NewID returns a fresh UUID string.
func NewID() string {
	return uuid.NewString()
}

// NewRequestID returns a request id for response correlation headers.
func NewRequestID() string {
	return uuid.NewString()
}

// QueueNameFromARN extracts the resource suffix of an SQS ARN.
// Returns "" if the ARN is not an SQS ARN.
func QueueNameFromARN(s string) string {
	if !strings.Contains(s, ":sqs:") {
		return ""
	}
	parts := strings.Split(s, ":")
	return parts[len(parts)-1]
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
