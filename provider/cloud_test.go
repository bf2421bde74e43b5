package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/isdmx/cloudbox/config"
)

func testComputeConfig() *config.ComputeConfig {
	return &config.ComputeConfig{
		Backend:         "cloud",
		Token:           "test-token",
		BaseURL:         "https://compute.test",
		VCPU:            2,
		MemoryMB:        2048,
		Architecture:    "amd64",
		OS:              "linux",
		Purpose:         "test sandbox",
		DestroyReason:   "test teardown",
		TargetContainer: "main-container",
	}
}

func newTestProvider(t *testing.T, doer *MockDoer) *CloudProvider {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewCloudProvider(
		zaptest.NewLogger(t),
		testComputeConfig(),
		WithHTTPClient(doer),
		WithClock(func() time.Time { return now }),
	)
}

func TestCloudProviderCreate(t *testing.T) {
	createResponse := `{"instance":{"id":"i-42","command_endpoint":"https://cmd.test","created_at":"2025-06-01T11:00:00Z"}}`

	t.Run("DefaultImage", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, createResponse)}
		p := newTestProvider(t, doer)
		p.cfg.Image = ""

		_, err := p.Create(context.Background(), CreateOptions{})
		require.NoError(t, err)

		var sent createInstanceRequest
		require.NoError(t, json.Unmarshal([]byte(doer.bodies[0]), &sent))
		require.Len(t, sent.Containers, 1)
		assert.Equal(t, "ubuntu:latest", sent.Containers[0].Image)
	})

	t.Run("ImageFromOptions", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, createResponse)}
		p := newTestProvider(t, doer)

		_, err := p.Create(context.Background(), CreateOptions{Image: "alpine"})
		require.NoError(t, err)

		var sent createInstanceRequest
		require.NoError(t, json.Unmarshal([]byte(doer.bodies[0]), &sent))
		assert.Equal(t, "alpine", sent.Containers[0].Image)
	})

	t.Run("EnvOnlyWhenNonEmpty", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, createResponse)}
		p := newTestProvider(t, doer)

		_, err := p.Create(context.Background(), CreateOptions{})
		require.NoError(t, err)
		assert.NotContains(t, doer.bodies[0], `"env"`)

		_, err = p.Create(context.Background(), CreateOptions{Env: map[string]string{"FOO": "bar"}})
		require.NoError(t, err)
		assert.Contains(t, doer.bodies[1], `"env":{"FOO":"bar"}`)
	})

	t.Run("DeadlineIsOneHourOut", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, createResponse)}
		p := newTestProvider(t, doer)

		_, err := p.Create(context.Background(), CreateOptions{})
		require.NoError(t, err)

		var sent createInstanceRequest
		require.NoError(t, json.Unmarshal([]byte(doer.bodies[0]), &sent))
		assert.Equal(t, "2025-06-01T13:00:00Z", sent.Deadline)
	})

	t.Run("MachineShapeAndPurpose", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, createResponse)}
		p := newTestProvider(t, doer)

		_, err := p.Create(context.Background(), CreateOptions{})
		require.NoError(t, err)

		var sent createInstanceRequest
		require.NoError(t, json.Unmarshal([]byte(doer.bodies[0]), &sent))
		assert.Equal(t, 2, sent.Machine.VCPU)
		assert.Equal(t, 2048, sent.Machine.MemoryMB)
		assert.Equal(t, "amd64", sent.Machine.Architecture)
		assert.Equal(t, "linux", sent.Machine.OS)
		assert.Equal(t, "test sandbox", sent.Purpose)
		assert.Equal(t, []string{"sh", "-c", "sleep infinity"}, sent.Containers[0].Command)
	})

	t.Run("MachineShapeDefaultsWhenConfigUnset", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, createResponse)}
		p := newTestProvider(t, doer)
		p.cfg.VCPU = 0
		p.cfg.MemoryMB = 0
		p.cfg.Architecture = ""
		p.cfg.OS = ""

		_, err := p.Create(context.Background(), CreateOptions{})
		require.NoError(t, err)

		var sent createInstanceRequest
		require.NoError(t, json.Unmarshal([]byte(doer.bodies[0]), &sent))
		assert.Equal(t, defaultVCPU, sent.Machine.VCPU)
		assert.Equal(t, defaultMemoryMB, sent.Machine.MemoryMB)
		assert.Equal(t, defaultArchitecture, sent.Machine.Architecture)
		assert.Equal(t, defaultOS, sent.Machine.OS)
	})

	t.Run("RecordShape", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, createResponse)}
		p := newTestProvider(t, doer)

		inst, err := p.Create(context.Background(), CreateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "i-42", inst.ID)
		assert.Equal(t, "instance-i-42", inst.Name)
		assert.Equal(t, "https://cmd.test", inst.CommandEndpoint)
		assert.Equal(t, "test-token", inst.Token)
		assert.Equal(t, "main-container", inst.TargetContainer)
		assert.Equal(t, time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC), inst.CreatedAt)
	})

	t.Run("MissingCreatedAtIsEpochZero", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, `{"instance":{"id":"i-42"}}`)}
		p := newTestProvider(t, doer)

		inst, err := p.Create(context.Background(), CreateOptions{})
		require.NoError(t, err)
		assert.Equal(t, time.Unix(0, 0).UTC(), inst.CreatedAt)
	})

	t.Run("MissingInstanceID", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, `{"instance":{}}`)}
		p := newTestProvider(t, doer)

		_, err := p.Create(context.Background(), CreateOptions{})
		require.Error(t, err)

		var lifecycleErr *LifecycleError
		require.ErrorAs(t, err, &lifecycleErr)
		assert.Equal(t, "create", lifecycleErr.Op)
	})

	t.Run("NoCredentials", func(t *testing.T) {
		t.Setenv(EnvToken, "")
		t.Setenv(EnvTokenFile, "")
		doer := &MockDoer{respond: respondWith(http.StatusOK, createResponse)}
		p := newTestProvider(t, doer)
		p.cfg.Token = ""

		_, err := p.Create(context.Background(), CreateOptions{})
		require.Error(t, err)

		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)
		assert.Empty(t, doer.requests)
	})
}

func TestCloudProviderGet(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, `{"instance":{"id":"i-7","command_endpoint":"https://cmd.test"}}`)}
		p := newTestProvider(t, doer)

		inst, err := p.Get(context.Background(), "i-7")
		require.NoError(t, err)
		require.NotNil(t, inst)
		assert.Equal(t, "i-7", inst.ID)
		assert.Equal(t, "instance-i-7", inst.Name)
		assert.Contains(t, doer.bodies[0], `"id":"i-7"`)
	})

	t.Run("NotFoundIsNil", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusNotFound, `not found`)}
		p := newTestProvider(t, doer)

		inst, err := p.Get(context.Background(), "i-missing")
		require.NoError(t, err)
		assert.Nil(t, inst)
	})

	t.Run("OtherStatusPropagates", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusForbidden, `denied`)}
		p := newTestProvider(t, doer)

		_, err := p.Get(context.Background(), "i-7")
		require.Error(t, err)

		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, http.StatusForbidden, transportErr.StatusCode)
	})

	t.Run("MissingInstanceID", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, `{"instance":{}}`)}
		p := newTestProvider(t, doer)

		_, err := p.Get(context.Background(), "i-7")
		require.Error(t, err)

		var lifecycleErr *LifecycleError
		require.ErrorAs(t, err, &lifecycleErr)
	})
}

func TestCloudProviderList(t *testing.T) {
	t.Run("DualIDLocations", func(t *testing.T) {
		body := `{"instances":[
			{"id":"i-top","command_endpoint":"https://a.test"},
			{"instance":{"id":"i-nested","command_endpoint":"https://b.test"}},
			{"command_endpoint":"https://no-id.test"},
			{}
		]}`
		doer := &MockDoer{respond: respondWith(http.StatusOK, body)}
		p := newTestProvider(t, doer)

		instances, err := p.List(context.Background())
		require.NoError(t, err)
		require.Len(t, instances, 2)
		assert.Equal(t, "i-top", instances[0].ID)
		assert.Equal(t, "i-nested", instances[1].ID)
	})

	t.Run("BothLocationsYieldOneRecord", func(t *testing.T) {
		body := `{"instances":[{"id":"i-top","instance":{"id":"i-nested"}}]}`
		doer := &MockDoer{respond: respondWith(http.StatusOK, body)}
		p := newTestProvider(t, doer)

		instances, err := p.List(context.Background())
		require.NoError(t, err)
		require.Len(t, instances, 1)
		assert.Equal(t, "i-top", instances[0].ID)
	})

	t.Run("EmptyResult", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, `{"instances":[]}`)}
		p := newTestProvider(t, doer)

		instances, err := p.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, instances)
	})

	t.Run("TransportErrorPropagates", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusBadGateway, `bad gateway`)}
		p := newTestProvider(t, doer)

		_, err := p.List(context.Background())
		require.Error(t, err)

		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
	})
}

func TestCloudProviderDestroy(t *testing.T) {
	newObservedProvider := func(doer *MockDoer) (*CloudProvider, *observer.ObservedLogs) {
		core, logs := observer.New(zap.WarnLevel)
		p := NewCloudProvider(zap.New(core), testComputeConfig(), WithHTTPClient(doer))
		return p, logs
	}

	t.Run("SendsIDAndReason", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, `{}`)}
		p := newTestProvider(t, doer)

		p.Destroy(context.Background(), "i-9")
		require.Len(t, doer.bodies, 1)
		assert.Contains(t, doer.bodies[0], `"id":"i-9"`)
		assert.Contains(t, doer.bodies[0], `"reason":"test teardown"`)
	})

	t.Run("APIErrorOnlyWarns", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusOK, `{"error":"already gone"}`)}
		p, logs := newObservedProvider(doer)

		p.Destroy(context.Background(), "i-9")
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "failed to destroy instance", logs.All()[0].Message)
	})

	t.Run("TransportFailureOnlyWarns", func(t *testing.T) {
		doer := &MockDoer{respond: func(*http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("connection reset")
		}}
		p, logs := newObservedProvider(doer)

		p.Destroy(context.Background(), "i-9")
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "failed to destroy instance", logs.All()[0].Message)
	})

	t.Run("ErrorStatusOnlyWarns", func(t *testing.T) {
		doer := &MockDoer{respond: respondWith(http.StatusConflict, `conflict`)}
		p, logs := newObservedProvider(doer)

		p.Destroy(context.Background(), "i-9")
		require.Equal(t, 1, logs.Len())
	})

	t.Run("NoCredentialsOnlyWarns", func(t *testing.T) {
		t.Setenv(EnvToken, "")
		t.Setenv(EnvTokenFile, "")
		doer := &MockDoer{respond: respondWith(http.StatusOK, `{}`)}
		p, logs := newObservedProvider(doer)
		p.cfg.Token = ""

		p.Destroy(context.Background(), "i-9")
		require.Equal(t, 1, logs.Len())
		assert.Empty(t, doer.requests)
	})
}

func TestFactory(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("CloudBackend", func(t *testing.T) {
		cfg := &config.Config{Compute: *testComputeConfig()}
		p, err := New(logger, cfg)
		require.NoError(t, err)
		require.NotNil(t, p)
		_, ok := p.(*CloudProvider)
		assert.True(t, ok)
	})

	t.Run("UnsupportedBackend", func(t *testing.T) {
		cfg := &config.Config{Compute: config.ComputeConfig{Backend: "docker"}}
		_, err := New(logger, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported backend")
	})
}
