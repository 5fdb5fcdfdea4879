package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/issues"
	"github.com/muzima/registration-worker/payload"
	"github.com/muzima/registration-worker/queue"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "payloadctl",
		Short:         "Inspect mUzima queue data payloads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(routesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <payload-file>",
		Short: "Print what the worker extracts from a payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			discriminator, _ := cmd.Flags().GetString("discriminator")
			preferred, _ := cmd.Flags().GetString("preferred-identifier-type")

			route, ok := queue.RouteFor(discriminator)
			if !ok {
				return fmt.Errorf("unknown discriminator %q", discriminator)
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("unable to read payload: %w", err)
			}

			submission := queue.Submission{
				SubmissionID:  args[0],
				Discriminator: discriminator,
				Dialect:       route.Dialect,
				Payload:       string(raw),
			}
			extraction := payload.NewExtractor(payload.Config{PreferredIdentifierType: preferred}).Extract(submission)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(newExtractionView(route, extraction)); err != nil {
				return err
			}
			if extraction.Issues.HasFatal() {
				return fmt.Errorf("payload has fatal issues")
			}
			return nil
		},
	}

	cmd.Flags().String("discriminator", queue.DiscriminatorJsonEncounter, "Queue data discriminator of the payload")
	cmd.Flags().String("preferred-identifier-type", "AMRS Universal ID", "Identifier type name of the medical record number")
	return cmd
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the discriminators handled by the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			discriminators := []string{
				queue.DiscriminatorRegistration,
				queue.DiscriminatorHtmlRegistration,
				queue.DiscriminatorJsonRegistration,
				queue.DiscriminatorXmlRegistration,
				queue.DiscriminatorJsonEncounter,
				queue.DiscriminatorJsonFormEncounter,
				queue.DiscriminatorXmlEncounter,
			}
			sort.Strings(discriminators)
			for _, discriminator := range discriminators {
				route, _ := queue.RouteFor(discriminator)
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-18s %-13s %s\n", discriminator, route.Dialect, route.Kind, route.Policy)
			}
			return nil
		},
	}
}

type extractionView struct {
	Dialect   string        `json:"dialect"`
	Kind      string        `json:"kind"`
	Policy    string        `json:"policy"`
	Patient   patientView   `json:"patient"`
	Encounter encounterView `json:"encounter"`
	Obs       []obsView     `json:"obs,omitempty"`
	Issues    []issueView   `json:"issues,omitempty"`
}

type patientView struct {
	TemporaryId        string           `json:"temporaryId,omitempty"`
	Name               emr.PersonName   `json:"name"`
	Sex                string           `json:"sex,omitempty"`
	Birthdate          *time.Time       `json:"birthdate,omitempty"`
	BirthdateEstimated bool             `json:"birthdateEstimated"`
	Identifiers        []identifierView `json:"identifiers,omitempty"`
	Address            *emr.Address     `json:"address,omitempty"`
}

type identifierView struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Location  string `json:"location"`
	Preferred bool   `json:"preferred,omitempty"`
}

type encounterView struct {
	EncounterType string     `json:"encounterType"`
	Form          string     `json:"form"`
	Provider      string     `json:"provider"`
	Location      string     `json:"location"`
	Datetime      *time.Time `json:"datetime,omitempty"`
}

type obsView struct {
	Concept string    `json:"concept"`
	Value   string    `json:"value,omitempty"`
	Members []obsView `json:"members,omitempty"`
}

type issueView struct {
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

func newExtractionView(route queue.Route, extraction payload.Extraction) extractionView {
	view := extractionView{
		Dialect: extraction.Dialect.String(),
		Kind:    route.Kind.String(),
		Policy:  string(route.Policy),
		Patient: patientView{
			TemporaryId:        extraction.Patient.TemporaryId,
			Name:               extraction.Patient.Name,
			Sex:                extraction.Patient.Sex,
			Birthdate:          extraction.Patient.Birthdate,
			BirthdateEstimated: extraction.Patient.BirthdateEstimated,
			Address:            extraction.Patient.Address,
		},
		Encounter: encounterView{
			EncounterType: extraction.Encounter.EncounterType.String(),
			Form:          extraction.Encounter.Form.String(),
			Provider:      extraction.Encounter.Provider.String(),
			Location:      extraction.Encounter.Location.String(),
			Datetime:      extraction.Encounter.Datetime,
		},
		Obs:    newObsViews(extraction.Obs, extraction.Obs.Roots),
		Issues: newIssueViews(extraction.Issues),
	}
	for _, identifier := range extraction.Patient.Identifiers {
		view.Patient.Identifiers = append(view.Patient.Identifiers, identifierView{
			Type:      identifier.Type.String(),
			Value:     identifier.Value,
			Location:  identifier.Location.String(),
			Preferred: identifier.Preferred,
		})
	}
	return view
}

func newObsViews(tree payload.ObsTree, ids []payload.ObsId) []obsView {
	var views []obsView
	for _, id := range ids {
		node := tree.Node(id)
		concept := node.Concept.Raw
		if concept == "" {
			concept = strings.Join([]string{fmt.Sprint(node.Concept.Id), node.Concept.Name, node.Concept.Source}, "^")
		}
		views = append(views, obsView{
			Concept: concept,
			Value:   node.Value,
			Members: newObsViews(tree, node.Members),
		})
	}
	return views
}

func newIssueViews(list issues.List) []issueView {
	var views []issueView
	for _, issue := range list {
		views = append(views, issueView{
			Kind:    issue.Kind.String(),
			Field:   issue.Field,
			Message: issue.Message,
			Fatal:   issue.Fatal,
		})
	}
	return views
}
