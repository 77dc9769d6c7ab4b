package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sergeydigl3/dfwctl/internal/dfw"
	"github.com/Sergeydigl3/dfwctl/internal/output"
)

var (
	ruleID        string
	ruleName      string
	ruleSectionID string
	ruleAbove     string
)

var rulesCmd = &cobra.Command{
	Use:     "rules",
	Aliases: []string{"rule"},
	Short:   "Manage firewall rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules of every section in evaluation order",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Read a rule",
	Args:  cobra.NoArgs,
	RunE:  runRulesRead,
}

var rulesIDCmd = &cobra.Command{
	Use:   "id",
	Short: "Find rule ids by name within a section",
	Args:  cobra.NoArgs,
	RunE:  runRulesID,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a rule",
	Args:  cobra.NoArgs,
	RunE:  runRulesDelete,
}

var rulesMoveCmd = &cobra.Command{
	Use:   "move",
	Short: "Move a rule directly above another rule of the same section",
	Args:  cobra.NoArgs,
	RunE:  runRulesMove,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesReadCmd, rulesIDCmd, rulesDeleteCmd, rulesMoveCmd)

	for _, c := range []*cobra.Command{rulesReadCmd, rulesDeleteCmd, rulesMoveCmd} {
		c.Flags().StringVar(&ruleID, "id", "", "rule id")
		_ = c.MarkFlagRequired("id")
	}

	rulesIDCmd.Flags().StringVar(&ruleSectionID, "section-id", "", "section id")
	rulesIDCmd.Flags().StringVar(&ruleName, "name", "", "rule name")
	_ = rulesIDCmd.MarkFlagRequired("section-id")
	_ = rulesIDCmd.MarkFlagRequired("name")

	rulesMoveCmd.Flags().StringVar(&ruleAbove, "above", "", "id of the rule to move above")
	_ = rulesMoveCmd.MarkFlagRequired("above")

	for _, c := range []struct {
		kind  dfw.ClauseKind
		use   string
		flag  string
		usage string
	}{
		{dfw.ClauseSource, "delete-source", "source", "address or object name to remove"},
		{dfw.ClauseDestination, "delete-destination", "destination", "address or object name to remove"},
		{dfw.ClauseService, "delete-service", "service", "service name or protocol:sourcePort:destinationPort"},
		{dfw.ClauseApplyTo, "delete-applyto", "applyto", "applied-to object name to remove"},
	} {
		rulesCmd.AddCommand(newClauseCmd(c.kind, c.use, c.flag, c.usage))
	}
}

// newClauseCmd builds one of the delete-<clause> commands.
func newClauseCmd(kind dfw.ClauseKind, use, flag, usage string) *cobra.Command {
	var id, criterion string

	c := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Remove matching %s entries from a rule", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClauseDelete(cmd, kind, id, criterion)
		},
	}
	c.Flags().StringVar(&id, "id", "", "rule id")
	c.Flags().StringVar(&criterion, flag, "", usage)
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired(flag)
	return c
}

func runRulesList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	snap, err := a.index.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	return a.render(cmd, output.View{Tables: dfw.RuleTables(snap.Groups), Data: snap.Rules()})
}

func runRulesRead(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	r, err := a.index.FindRuleByID(cmd.Context(), ruleID)
	if err != nil {
		return err
	}
	return a.render(cmd, output.View{Tables: []dfw.Table{dfw.RuleTable("", []dfw.Rule{r})}, Data: r})
}

func runRulesID(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ids, err := a.index.FindRulesByName(cmd.Context(), ruleSectionID, ruleName)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return &dfw.Error{
			Op:     "find rules",
			Object: ruleName,
			Kind:   dfw.ErrNotFound,
			Err:    fmt.Errorf("no rule with this name in section %s", ruleSectionID),
		}
	}

	return a.render(cmd, output.View{
		Tables: []dfw.Table{{
			Headers: []string{"Rule Name", "Rule IDs"},
			Rows:    [][]string{{ruleName, strings.Join(ids, ",")}},
		}},
		Data: map[string]interface{}{"name": ruleName, "sectionId": ruleSectionID, "ids": ids},
	})
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var r dfw.Rule
	err = a.withRetry("delete rule", func() error {
		r, err = a.coordinator.DeleteRule(cmd.Context(), ruleID)
		return err
	})
	if err != nil {
		return err
	}

	return a.render(cmd, output.View{
		Message: fmt.Sprintf("Rule %s with ID %s in section %s has been deleted", r.Name, r.ID, r.SectionID),
		Data:    r,
	})
}

func runClauseDelete(cmd *cobra.Command, kind dfw.ClauseKind, id, criterion string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var res dfw.ClauseResult
	err = a.withRetry("delete rule "+string(kind), func() error {
		res, err = a.coordinator.DeleteClause(cmd.Context(), id, kind, criterion)
		return err
	})
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Removed %d %s entries from rule %s", res.Removed, kind, id)
	if res.Removed == 0 {
		msg = fmt.Sprintf("No %s matching %q in rule %s, nothing changed", kind, criterion, id)
	}
	return a.render(cmd, output.View{
		Message: msg,
		Tables:  []dfw.Table{dfw.RuleTable("", []dfw.Rule{res.Rule})},
		Data:    res,
	})
}

func runRulesMove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var sec dfw.Section
	err = a.withRetry("move rule", func() error {
		sec, err = a.coordinator.MoveRuleAbove(cmd.Context(), ruleID, ruleAbove)
		return err
	})
	if err != nil {
		return err
	}

	return a.render(cmd, output.View{
		Message: fmt.Sprintf("Rule %s moved above rule %s", ruleID, ruleAbove),
		Tables:  []dfw.Table{dfw.RuleTable("Section "+sec.DisplayName(), sec.Rules)},
		Data:    sec,
	})
}
