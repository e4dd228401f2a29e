package domain

import "github.com/google/uuid"

var questionNamespace = uuid.MustParse("8f5d2a4e-3c1b-4f0e-9a6d-2b7c1e0f4a93")

// EnsureID gives q a stable UUIDv5 derived from its prompt when the source carried no id.
func (q *Question) EnsureID() {
	if q.ID == "" {
		q.ID = uuid.NewSHA1(questionNamespace, []byte(q.Prompt)).String()
	}
}
