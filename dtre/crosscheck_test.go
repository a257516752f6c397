package dtre_test

import (
	"testing"

	"github.com/brutalist-labs/dtre/dtre"
	"github.com/stretchr/testify/assert"
)

func TestNonDeterministicErrorMessage(t *testing.T) {
	err := &dtre.NonDeterministicError{Index: 7, SequentialHash: "aaaa", ParallelHash: "bbbb"}
	msg := err.Error()
	assert.Contains(t, msg, "index 7")
	assert.Contains(t, msg, "aaaa")
	assert.Contains(t, msg, "bbbb")
}
