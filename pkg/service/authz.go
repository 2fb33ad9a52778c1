package service

import "context"

// Action is an authorization action consulted before every REST operation.
type Action string

// The fixed action set the authorization oracle understands.
const (
	ActionLocationUpdate       Action = "location-update"
	ActionBucketRead           Action = "bucket-read"
	ActionBucketReadVersions   Action = "bucket-read-versions"
	ActionBucketUpdate         Action = "bucket-update"
	ActionBucketListMultiparts Action = "bucket-listmultiparts"
	ActionObjectRead           Action = "object-read"
	ActionObjectReadVersion    Action = "object-read-version"
	ActionObjectDelete         Action = "object-delete"
	ActionObjectDeleteVersion  Action = "object-delete-version"
	ActionMultipartRead        Action = "multipart-read"
	ActionMultipartDelete      Action = "multipart-delete"
)

// Principal identifies the caller. The zero value is the anonymous principal.
type Principal struct {
	Subject string
	Roles   []string
}

// Anonymous reports whether the principal carries no identity.
func (p Principal) Anonymous() bool {
	return p.Subject == ""
}

// Authorizer is the opaque authorization oracle. Target is the entity the
// action applies to (a bucket, object version, or multipart upload); nil for
// global actions.
type Authorizer interface {
	// Authorize returns nil to allow the action and an error to deny it.
	Authorize(ctx context.Context, principal Principal, action Action, target any) error
}

// AllowAll is an Authorizer that permits every action.
type AllowAll struct{}

// Authorize implements Authorizer.
func (AllowAll) Authorize(ctx context.Context, principal Principal, action Action, target any) error {
	return nil
}
