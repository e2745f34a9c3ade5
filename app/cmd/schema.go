package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/umputun/jobtrail/app/history"
)

// SchemaCommand prints json schema of the job record
type SchemaCommand struct {
	CommonOpts
}

// Execute is the entry point for "schema" command, called by flag parser
func (sc *SchemaCommand) Execute(_ []string) error {
	schema := jsonschema.Reflect(&history.JobRecord{})
	schema.Title = "Job record"
	schema.Description = "Serialized job as stored in the jobs collection"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	fmt.Fprintln(sc.Out, string(data))
	return nil
}
