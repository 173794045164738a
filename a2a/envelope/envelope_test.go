package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsMissingFields(t *testing.T) {
	require.Error(t, Validate(Envelope{}))
	require.Error(t, Validate(Envelope{ID: "1", Type: TypeRequest, From: "a"}))
}

func TestValidateRejectsUnknownType(t *testing.T) {
	err := Validate(Envelope{ID: "1", Type: "bogus", From: "a", To: "b"})
	require.Error(t, err)
}

func TestValidateRequiresCorrelationIDForResponses(t *testing.T) {
	err := Validate(Envelope{ID: "1", Type: TypeResponse, From: "a", To: "b"})
	require.Error(t, err)

	err = Validate(Envelope{ID: "1", Type: TypeResponse, From: "a", To: "b", CorrelationID: "c"})
	require.NoError(t, err)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	e := Envelope{
		ID:      "env-1",
		Type:    TypeRequest,
		From:    "agent-a",
		To:      "agent-b",
		Payload: map[string]interface{}{"x": float64(1)},
	}
	data, err := Marshal(e)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestUnmarshalRejectsInvalidEnvelope(t *testing.T) {
	_, err := Unmarshal([]byte(`{"id":"","type":"request","from":"a","to":"b"}`))
	require.Error(t, err)
}

func TestUnmarshalRejectsMalformedJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`not json`))
	require.Error(t, err)
}
