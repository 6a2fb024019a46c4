package schema

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/sr"
)

// A SchemaIdentifier returns the registry id of the schema under subject.
type SchemaIdentifier interface {
	DetermineID(
		ctx context.Context, subject string, avroSchemaText string,
	) (id int, err error)
}

type schemaRegistryClient interface {
	CreateSchema(
		ctx context.Context, subject string, s sr.Schema,
	) (sr.SubjectSchema, error)
}

// A schemaCreater registers the schema, registry returns
// the existing id if the same schema text is already stored.
type schemaCreater struct {
	cl schemaRegistryClient
}

func NewSchemaCreater(cl *sr.Client) SchemaIdentifier {
	return schemaCreater{cl}
}

func (sc schemaCreater) DetermineID(
	ctx context.Context, subject string, avroSchemaText string,
) (int, error) {
	const op = "schemaCreater.DetermineID"

	ss, err := sc.cl.CreateSchema(ctx, subject, sr.Schema{
		Schema: avroSchemaText,
		Type:   sr.TypeAvro,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return ss.ID, nil
}
