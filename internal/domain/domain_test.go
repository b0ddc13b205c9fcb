package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCanvasDomain(t *testing.T) {
	cases := map[string]CanvasDomain{
		"LANGUAGE":     DomainLanguage,
		"science":      DomainScience,
		"liberal arts": DomainLiberalArts,
		"Liberal-Arts": DomainLiberalArts,
	}
	for in, want := range cases {
		got, ok := ParseCanvasDomain(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseCanvasDomain("MATH")
	assert.False(t, ok)
}

func TestMediaJobStatusTerminal(t *testing.T) {
	for _, s := range ActiveMediaJobStatuses {
		assert.False(t, s.Terminal(), s)
	}
	for _, s := range []MediaJobStatus{MediaJobCompleted, MediaJobFailed, MediaJobTimeout, MediaJobSuperseded} {
		assert.True(t, s.Terminal(), s)
	}
}
