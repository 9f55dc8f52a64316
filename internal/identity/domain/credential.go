package domain

import "time"

// Credential is the stored secret record for one principal: the identity it
// belongs to and the salted hash of its secret. The gate only ever reads
// these; credential changes belong to the identity service that owns them.
type Credential struct {
	Identity   string
	SecretHash string
	UpdatedAt  time.Time
}
