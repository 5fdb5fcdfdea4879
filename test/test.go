package test

import (
	"os"
	"path/filepath"

	"github.com/muzima/registration-worker/queue"
)

// LoadFixture reads a file relative to the directory of the package under test
func LoadFixture(relativePath string) ([]byte, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	return os.ReadFile(filepath.Join(wd, relativePath))
}

// LoadSubmission wraps the payload fixture in a submission of the given dialect. The fixture name is used
// as the submission id.
func LoadSubmission(fixture string, dialect queue.Dialect) (queue.Submission, error) {
	body, err := LoadFixture(filepath.Join("test", "fixtures", fixture))
	if err != nil {
		return queue.Submission{}, err
	}

	return queue.Submission{
		SubmissionID: "submission-" + fixture,
		Dialect:      dialect,
		Payload:      string(body),
	}, nil
}
