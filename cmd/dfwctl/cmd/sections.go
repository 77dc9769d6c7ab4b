package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sergeydigl3/dfwctl/internal/dfw"
	"github.com/Sergeydigl3/dfwctl/internal/output"
)

var (
	sectionID   string
	sectionName string
	sectionType string
	sectionsRaw bool
)

var sectionsCmd = &cobra.Command{
	Use:     "sections",
	Aliases: []string{"section"},
	Short:   "Manage firewall sections",
}

var sectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sections of every type",
	Args:  cobra.NoArgs,
	RunE:  runSectionsList,
}

var sectionsReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Read a section with its rules and version tag",
	Args:  cobra.NoArgs,
	RunE:  runSectionsRead,
}

var sectionsIDCmd = &cobra.Command{
	Use:   "id",
	Short: "Find section ids by name",
	Args:  cobra.NoArgs,
	RunE:  runSectionsID,
}

var sectionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty section on top of its type",
	Args:  cobra.NoArgs,
	RunE:  runSectionsCreate,
}

var sectionsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a section and its rules",
	Args:  cobra.NoArgs,
	RunE:  runSectionsDelete,
}

func init() {
	rootCmd.AddCommand(sectionsCmd)
	sectionsCmd.AddCommand(sectionsListCmd, sectionsReadCmd, sectionsIDCmd, sectionsCreateCmd, sectionsDeleteCmd)

	for _, c := range []*cobra.Command{sectionsReadCmd, sectionsDeleteCmd} {
		c.Flags().StringVar(&sectionID, "id", "", "section id")
		_ = c.MarkFlagRequired("id")
	}
	for _, c := range []*cobra.Command{sectionsIDCmd, sectionsCreateCmd} {
		c.Flags().StringVar(&sectionName, "name", "", "section name")
		_ = c.MarkFlagRequired("name")
	}
	sectionsListCmd.Flags().BoolVar(&sectionsRaw, "raw", false, "print the manager's configuration document instead of tables")
	sectionsCreateCmd.Flags().StringVar(&sectionType, "type", "", "section type: L2, L3 or L3R")
	_ = sectionsCreateCmd.MarkFlagRequired("type")
}

func runSectionsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if sectionsRaw {
		snap, err := a.index.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		r := a.renderer
		if outputFormat == output.FormatTable {
			if r, err = output.NewRenderer(output.FormatYAML); err != nil {
				return err
			}
		}
		return r.Render(cmd.OutOrStdout(), output.View{Data: map[string]interface{}(snap.Raw)})
	}

	groups, err := a.index.ListSections(cmd.Context())
	if err != nil {
		return err
	}
	return a.render(cmd, output.View{Tables: dfw.SectionTables(groups), Data: groups})
}

func runSectionsRead(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	sec, err := a.index.ReadSection(cmd.Context(), sectionID)
	if err != nil {
		return err
	}
	return a.render(cmd, output.View{
		Tables: []dfw.Table{dfw.SectionDetail(sec), dfw.RuleTable("Rules", sec.Rules)},
		Data:   sec,
	})
}

func runSectionsID(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	secs, err := a.index.SectionsByName(cmd.Context(), sectionName)
	if err != nil {
		return err
	}
	if len(secs) == 0 {
		return &dfw.Error{Op: "find section", Object: sectionName, Kind: dfw.ErrNotFound}
	}

	ids := make([]string, 0, len(secs))
	for _, s := range secs {
		ids = append(ids, s.ID)
	}
	return a.render(cmd, output.View{
		Tables: []dfw.Table{{
			Headers: []string{"Section Name", "Section IDs"},
			Rows:    [][]string{{sectionName, strings.Join(ids, ",")}},
		}},
		Data: map[string]interface{}{"name": sectionName, "ids": ids},
	})
}

func runSectionsCreate(cmd *cobra.Command, args []string) error {
	typ, err := dfw.ParseSectionType(sectionType)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	res, err := a.coordinator.CreateSection(cmd.Context(), sectionName, typ)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Section %s created with ID %s", res.Section.DisplayName(), res.Section.ID)
	if res.Existed {
		msg = fmt.Sprintf("Section %s already exists with ID %s", res.Section.DisplayName(), res.Section.ID)
	}
	return a.render(cmd, output.View{
		Message: msg,
		Tables:  []dfw.Table{dfw.SectionDetail(res.Section)},
		Data:    res,
	})
}

func runSectionsDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var sec dfw.Section
	err = a.withRetry("delete section", func() error {
		sec, err = a.coordinator.DeleteSection(cmd.Context(), sectionID)
		return err
	})
	if err != nil {
		return err
	}

	return a.render(cmd, output.View{
		Message: fmt.Sprintf("Section %s with ID %s of type %s has been deleted", sec.DisplayName(), sec.ID, sec.Type.Short()),
		Data:    sec,
	})
}
