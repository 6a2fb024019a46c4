package schema

import (
	"testing"

	"github.com/hamba/avro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordV1(t *testing.T) {
	t.Run("Regular", func(t *testing.T) {
		color, frame, price := "Blanco", false, "4500"
		vMarshal := RecordV1{
			RecordID:     "testRecordID",
			Brand:        "Motorola",
			Model:        "G20",
			Color:        &color,
			Frame:        &frame,
			ModuleRepair: &price,
		}

		var recordSchema avro.Schema

		require.NotPanics(t, func() {
			recordSchema = RecordV1Avro()
		})

		data, err := avro.Marshal(recordSchema, vMarshal)
		require.NoError(t, err)

		var vUnmarshal RecordV1
		err = avro.Unmarshal(recordSchema, data, &vUnmarshal)
		require.NoError(t, err)

		assert.Equal(t, vMarshal, vUnmarshal)
	})

	t.Run("Sparse", func(t *testing.T) {
		vMarshal := RecordV1{
			RecordID: "testRecordID",
			Brand:    "Motorola",
			Model:    "G20",
		}

		data, err := avro.Marshal(RecordV1Avro(), vMarshal)
		require.NoError(t, err)

		var vUnmarshal RecordV1
		err = avro.Unmarshal(RecordV1Avro(), data, &vUnmarshal)
		require.NoError(t, err)

		assert.Nil(t, vUnmarshal.Color)
		assert.Nil(t, vUnmarshal.Frame)
		assert.Nil(t, vUnmarshal.ModuleRepair)
	})
}

func TestRecordBlockV1(t *testing.T) {
	require.NotPanics(t, func() { RecordBlockV1Avro() })
}
