package cli

import (
	"github.com/spf13/cobra"

	"github.com/mathquest/mathquest/internal/daemon"
	"github.com/mathquest/mathquest/internal/domain"
)

// requirementFlags are shared by commands that take a requirement schema.
type requirementFlags struct {
	userID       string
	requirements string
}

func (f *requirementFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.userID, "user", "", "User ID")
	cmd.Flags().StringVar(&f.requirements, "requirements", "", "Requirement schema as a JSON object")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("requirements")
}

func (f *requirementFlags) schema() (domain.RequirementSchema, error) {
	return domain.ParseRequirementSchema([]byte(f.requirements))
}

// openDaemon wires the store and engine for one-shot commands.
func openDaemon(cmd *cobra.Command) (*daemon.Daemon, error) {
	return daemon.New(cmd.Context())
}
