package store

import gonanoid "github.com/matoous/go-nanoid/v2"

// taskIDAlphabet is alphanumeric only, so an id never starts with "-".
const taskIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewTaskID generates a 21-character case-sensitive alphanumeric task
// identifier.
func NewTaskID() (string, error) {
	return gonanoid.Generate(taskIDAlphabet, 21)
}
