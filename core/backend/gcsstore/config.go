// Package gcsstore implements the persistent tier on Google Cloud Storage.
//
// The backend is compiled only with the gcp build tag; Config is always
// available so configuration files parse the same way in every build.
package gcsstore

// Config holds bucket settings for Backend. Credentials come from
// Application Default Credentials.
type Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}
