package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/stamps"
)

func TestClient_LoginAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "taro@example.com", body["email"])
			w.Write([]byte(`{"success":true,"token":"tok","user":{"id":"u1","name":"Taro","email":"taro@example.com"}}`))
		case "/api/stamps/collected":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.Write([]byte(`{"success":true,"stamps":[{"id":"s1","userId":"u1","stampPointId":"1"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/")
	res, err := c.Login(context.Background(), "taro@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "u1", res.User.ID)

	collected, err := c.WithToken(res.Token).Collected(context.Background())
	require.NoError(t, err)
	require.Len(t, collected, 1)
	assert.Equal(t, "1", collected[0].StampPointID)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"errors":[{"message":"Incorrect email address or password"}]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Login(context.Background(), "a@b.co", "nope")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Incorrect email address or password", err.Error())
}

func TestClient_FieldErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"errors":[{"field":"name","message":"required"},{"field":"email","message":"required"}]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Register(context.Background(), "", "", "secret1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Len(t, apiErr.Errors, 2)
	assert.Equal(t, "name: required; email: required", err.Error())
	assert.False(t, IsUnauthorized(err))
}

func TestClient_ScanRejectionIsAResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			QRCode   string           `json:"qrCode"`
			Location *models.Location `json:"location"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Location == nil {
			w.Write([]byte(`{"success":true,"outcome":"accepted","stamp":{"id":"s1","stampPointId":"1"}}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"success":false,"outcome":"out_of_range","distanceKm":0.4,"errors":[{"message":"too far"}]}`))
	}))
	defer srv.Close()
	c := New(srv.URL).WithToken("tok")

	res, err := c.Scan(context.Background(), "CODE", nil)
	require.NoError(t, err)
	assert.True(t, res.Accepted())
	require.NotNil(t, res.Stamp)

	res, err = c.Scan(context.Background(), "CODE", &models.Location{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, stamps.OutOfRange, res.Outcome)
	assert.Equal(t, "too far", res.Message())
	require.NotNil(t, res.DistanceKm)
	assert.InDelta(t, 0.4, *res.DistanceKm, 1e-9)
}

func TestClient_ScanWithoutOutcomeIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"errors":[{"message":"Missing auth token"}]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Scan(context.Background(), "CODE", nil)
	assert.True(t, IsUnauthorized(err))
}

func TestClient_RetriesGetOnUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"OK","environment":"test"}`))
	}))
	defer srv.Close()

	h, err := New(srv.URL, WithMaxTries(3)).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", h.Status)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithMaxTries(3)).Login(context.Background(), "a@b.co", "secret1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.EqualValues(t, 1, calls.Load())
}
