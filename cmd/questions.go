package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/victornm/blindtest/internal/game"
	"github.com/victornm/blindtest/internal/question"
	"github.com/victornm/blindtest/internal/server"
)

var questionsGroup = &cobra.Group{
	ID:    "questions",
	Title: "Question sets",
}

var questionsCmd = &cobra.Command{
	Use:     "questions",
	GroupID: "questions",
	Short:   "Manage question sets",
}

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a question set file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		qs, err := readQuestions(args[0])
		if err != nil {
			return err
		}

		slots := 0
		for _, q := range qs {
			slots += len(q.Slots)
		}
		cmd.Printf("%s: %d questions, %d answers\n", args[0], len(qs), slots)
		return nil
	},
}

var importSet string

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Store a question set file in Postgres",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		qs, err := readQuestions(args[0])
		if err != nil {
			return err
		}

		c, err := loadConfig()
		if err != nil {
			return err
		}
		if c.Postgres.Addr == "" {
			return fmt.Errorf("postgres.addr is not configured")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		db, err := server.ConnectPostgres(ctx, c.Postgres)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()

		store := question.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		if err := store.Import(ctx, importSet, qs); err != nil {
			return fmt.Errorf("import %s: %w", importSet, err)
		}

		cmd.Printf("imported %d questions into set %q\n", len(qs), importSet)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSet, "set", "music", "name of the question set")

	questionsCmd.AddCommand(validateCmd, importCmd)
}

func readQuestions(file string) ([]game.Question, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	qs, err := question.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return qs, nil
}
