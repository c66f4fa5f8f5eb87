// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Generate creates a new unique job ID, a random (version 4) UUID in its
// canonical string form.
// Example: 3f6c1f9e-8a51-4a5e-9d2b-7c1d2e4f5a6b
func Generate() string {
	return uuid.NewString()
}
