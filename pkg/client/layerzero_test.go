package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetMessageByTx(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"data": [{
			"source": {"status": "SUCCEEDED", "txHash": "0xaaa"},
			"destination": {"status": "SUCCEEDED", "txHash": "0xbbb"},
			"status": {"name": "DELIVERED"}
		}]}`))
	}))
	defer server.Close()

	client := NewLayerZeroClient(server.URL, zap.NewNop())
	msg, err := client.GetMessageByTx(context.Background(), "0xaaa")
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "/messages/tx/0xaaa", gotPath)
	assert.Equal(t, LayerZeroDelivered, msg.Status.Name)
	assert.Equal(t, "0xbbb", msg.Destination.TxHash)
}

func TestGetMessageByTxNotIndexed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewLayerZeroClient(server.URL, zap.NewNop())
	msg, err := client.GetMessageByTx(context.Background(), "0xaaa")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestGetMessageByTxEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := NewLayerZeroClient(server.URL, zap.NewNop())
	msg, err := client.GetMessageByTx(context.Background(), "0xaaa")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestGetMessageByTxServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewLayerZeroClient(server.URL, zap.NewNop())
	_, err := client.GetMessageByTx(context.Background(), "0xaaa")
	assert.Error(t, err)
}
