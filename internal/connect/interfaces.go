package connect

import (
	"context"

	"github.com/keeper-security/ksm-connect/internal/resolver"
	"github.com/keeper-security/ksm-connect/pkg/types"
)

// Resolver narrows one host request to candidate secrets.
type Resolver interface {
	Resolve(req resolver.Request) (types.Resolution, error)
}

// Picker collapses multiple candidates to a single record UID.
type Picker interface {
	Pick(ctx context.Context, candidates []types.SecretSummary) (string, error)
}

// CredentialSource fetches the credential stored in a record.
type CredentialSource interface {
	GetCredential(uid string) (types.Credential, error)
}

// SessionLauncher starts the session for a resolved credential.
type SessionLauncher interface {
	Dispatch(ctx context.Context, req types.SessionRequest) error
}
