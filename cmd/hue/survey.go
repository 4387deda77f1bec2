package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/api"
	"gopkg.in/yaml.v3"
)

func newSurveyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "survey",
		Short: "Questionnaire commands",
	}

	cmd.AddCommand(newSurveySubmitCmd())
	return cmd
}

func newSurveySubmitCmd() *cobra.Command {
	var (
		flags       commonFlags
		answersPath string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit questionnaire answers and print the diagnosis",
		Long: `Reads answers from a YAML file and submits them:

  answers:
    - question_id: 1
      option_id: warm
      option_label: 따뜻한 느낌`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSurveySubmit(cmd, flags, answersPath)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&answersPath, "answers", "a", "", "YAML file with the answers (required)")
	cmd.MarkFlagRequired("answers")
	return cmd
}

type answerFile struct {
	Answers []api.SurveyAnswer `yaml:"answers"`
}

func loadAnswers(path string) ([]api.SurveyAnswer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	var f answerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	if len(f.Answers) == 0 {
		return nil, fmt.Errorf("answers %s: no answers listed", path)
	}
	for i, a := range f.Answers {
		if a.QuestionID <= 0 || a.OptionID == "" {
			return nil, fmt.Errorf("answers %s: entry %d needs question_id and option_id", path, i+1)
		}
	}
	return f.Answers, nil
}

func runSurveySubmit(cmd *cobra.Command, flags commonFlags, answersPath string) error {
	answers, err := loadAnswers(answersPath)
	if err != nil {
		return err
	}

	a, err := openApp(flags)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureUser(cmd.Context()); err != nil {
		return err
	}

	d, err := a.client.SubmitSurvey(cmd.Context(), answers)
	if err != nil {
		return fmt.Errorf("submit survey: %w", err)
	}
	a.history().InvalidateList()

	printDiagnosis(cmd.OutOrStdout(), d)
	return nil
}
