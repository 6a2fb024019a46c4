package schema

import "github.com/hamba/avro/v2"

// Prices travel as decimal strings, absent price is null.
const RecordSchemaTextV1 = `{
	"type": "record",
	"namespace": "repairshop",
	"name": "record",
	"fields": [
		{"name": "record_id", "type": "string"},
		{"name": "brand", "type": "string"},
		{"name": "model", "type": "string"},
		{"name": "color", "type": ["null", "string"], "default": null},
		{"name": "frame", "type": ["null", "boolean"], "default": null},
		{"name": "version", "type": ["null", "string"], "default": null},
		{"name": "type", "type": ["null", "string"], "default": null},
		{"name": "module_repair", "type": ["null", "string"], "default": null},
		{"name": "battery_repair", "type": ["null", "string"], "default": null},
		{"name": "pin_repair", "type": ["null", "string"], "default": null}
	]
}`

type RecordV1 struct {
	RecordID      string  `avro:"record_id"`
	Brand         string  `avro:"brand"`
	Model         string  `avro:"model"`
	Color         *string `avro:"color"`
	Frame         *bool   `avro:"frame"`
	Version       *string `avro:"version"`
	Type          *string `avro:"type"`
	ModuleRepair  *string `avro:"module_repair"`
	BatteryRepair *string `avro:"battery_repair"`
	PinRepair     *string `avro:"pin_repair"`
}

func RecordV1Avro() avro.Schema {
	return avro.MustParse(RecordSchemaTextV1)
}

const RecordBlockSchemaTextV1 = `{
	"type": "record",
	"namespace": "repairshop",
	"name": "record_block",
	"fields": [
		{"name": "record_id", "type": "string"},
		{"name": "blocked", "type": "boolean"}
	]
}`

type RecordBlockV1 struct {
	RecordID string `avro:"record_id"`
	Blocked  bool   `avro:"blocked"`
}

func RecordBlockV1Avro() avro.Schema {
	return avro.MustParse(RecordBlockSchemaTextV1)
}
