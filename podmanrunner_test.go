package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPodmanShellRunnerDefaultsImage(t *testing.T) {
	r := NewPodmanShellRunner("", "/work", true)
	assert.Equal(t, "localhost/mogzi-shell:latest", r.image)

	r = NewPodmanShellRunner("quay.io/custom/image:v1", "/work", false)
	assert.Equal(t, "quay.io/custom/image:v1", r.image)
}
