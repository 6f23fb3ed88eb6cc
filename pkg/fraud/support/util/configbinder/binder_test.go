package configbinder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollSettings struct {
	Interval int    `yaml:"interval" json:"interval"`
	Name     string `yaml:"name" json:"name"`
}

func TestBindProperties_WeaklyTyped(t *testing.T) {
	var s pollSettings
	require.NoError(t, BindProperties(map[string]interface{}{"interval": "10", "name": "crawl", "extra": 1}, &s))
	assert.Equal(t, 10, s.Interval)
	assert.Equal(t, "crawl", s.Name)
}

func TestBindStrict_RejectsUnknownAndCoercion(t *testing.T) {
	var s pollSettings
	err := BindStrict(map[string]interface{}{"interval": 10, "unknown": true}, &s, "json")
	assert.Error(t, err)

	err = BindStrict(map[string]interface{}{"interval": "10"}, &s, "json")
	assert.Error(t, err)

	require.NoError(t, BindStrict(map[string]interface{}{"interval": 10}, &s, "json"))
	assert.Equal(t, 10, s.Interval)
}
