// Package services defines the shared error taxonomy and context plumbing
// used by the pipeline collaborators (normalization, transcription engine)
// and the components that report their failures.
package services
