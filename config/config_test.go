package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expandTestStruct struct {
	InertString       string
	ExpandString      string
	ExpandStringSlice []string
	Timeout           time.Duration
	Inner             expandTestStructInner
}

type expandTestStructInner struct {
	ExpandString string
}

func TestExpandConfig(t *testing.T) {
	inert := "DO_NOT_CHANGE"
	os.Setenv("_FLOWSENTRY_OUTER", "OUTER_VALUE")
	os.Setenv("_FLOWSENTRY_INNER", "INNER_VALUE")
	defer os.Unsetenv("_FLOWSENTRY_OUTER")
	defer os.Unsetenv("_FLOWSENTRY_INNER")

	test := expandTestStruct{
		InertString:       inert,
		ExpandString:      "$_FLOWSENTRY_OUTER",
		ExpandStringSlice: []string{"${_FLOWSENTRY_OUTER}/x", inert},
		Timeout:           time.Second,
		Inner:             expandTestStructInner{ExpandString: "$_FLOWSENTRY_INNER"},
	}
	expandConfig(reflect.ValueOf(&test).Elem())

	assert.Equal(t, inert, test.InertString)
	assert.Equal(t, "OUTER_VALUE", test.ExpandString)
	assert.Equal(t, []string{"OUTER_VALUE/x", inert}, test.ExpandStringSlice)
	assert.Equal(t, time.Second, test.Timeout)
	assert.Equal(t, "INNER_VALUE", test.Inner.ExpandString)
}

func TestStoreReload(t *testing.T) {
	dir, err := ioutil.TempDir("", "flowsentry-config")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.yaml")
	require.Nil(t, ioutil.WriteFile(path, []byte("BruteForce:\n    SSH:\n        ListThreshold: 10\n"), 0644))

	conf, err := LoadConfig(path)
	require.Nil(t, err)
	store := NewStore(conf, path)
	assert.Equal(t, 10, store.Load().S.BruteForce.SSH.ListThreshold)

	require.Nil(t, ioutil.WriteFile(path, []byte("BruteForce:\n    SSH:\n        ListThreshold: 12\n"), 0644))
	require.Nil(t, store.Reload())
	assert.Equal(t, 12, store.Load().S.BruteForce.SSH.ListThreshold)
	assert.Equal(t, 10, conf.S.BruteForce.SSH.ListThreshold, "published snapshots are not modified")

	// a broken file keeps the previous snapshot active
	require.Nil(t, ioutil.WriteFile(path, []byte("BruteForce: [\n"), 0644))
	assert.NotNil(t, store.Reload())
	assert.Equal(t, 12, store.Load().S.BruteForce.SSH.ListThreshold)
}

func TestLoadConfigAppliesThresholdFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "flowsentry-config")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	thresholds := filepath.Join(dir, "thresholds.conf")
	require.Nil(t, ioutil.WriteFile(thresholds, []byte("SSH_LIST_THRESHOLD=33\n"), 0644))

	path := filepath.Join(dir, "config.yaml")
	yamlCfg := "BruteForce:\n    ThresholdFile: " + thresholds + "\n    SSH:\n        ListThreshold: 10\n"
	require.Nil(t, ioutil.WriteFile(path, []byte(yamlCfg), 0644))

	conf, err := LoadConfig(path)
	require.Nil(t, err)
	assert.Equal(t, 33, conf.S.BruteForce.SSH.ListThreshold)
}
