package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sergeydigl3/dfwctl/internal/dfw"
	"github.com/Sergeydigl3/dfwctl/internal/output"
)

var newRule dfw.RuleSpec

var rulesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a rule on top of a LAYER3 section",
	Long: `Create a rule on top of a LAYER3 section.

Unset options take the template defaults: action allow, direction inout,
packet type any, any source, destination and service, applied to the whole
distributed firewall.`,
	Args: cobra.NoArgs,
	RunE: runRulesCreate,
}

func init() {
	rulesCmd.AddCommand(rulesCreateCmd)

	f := rulesCreateCmd.Flags()
	f.StringVar(&newRule.SectionID, "section-id", "", "id of the section to create the rule in")
	f.StringVar(&newRule.SectionName, "section-name", "", "name of the section to create the rule in")
	f.StringVar(&newRule.Name, "name", "", "rule name")
	f.StringVar(&newRule.Action, "action", "", "allow, reject or deny")
	f.StringVar(&newRule.Direction, "direction", "", "in, out or inout")
	f.StringVar(&newRule.PacketType, "packet-type", "", "ipv4, ipv6 or any")
	f.BoolVar(&newRule.Disabled, "disabled", false, "create the rule disabled")
	f.BoolVar(&newRule.Logged, "logged", false, "log matching traffic")
	f.StringVar(&newRule.Notes, "notes", "", "rule notes")
	f.StringVar(&newRule.Tag, "tag", "", "rule tag")

	f.StringVar(&newRule.Source.Type, "source-type", dfw.TypeIPv4Address, "source type: Ipv4Address or VirtualWire")
	f.StringVar(&newRule.Source.Value, "source-value", "", "source address, subnet or logical switch id")
	f.StringVar(&newRule.Source.Name, "source-name", "", "source logical switch name")
	f.BoolVar(&newRule.Source.Excluded, "source-excluded", false, "match everything except the source")

	f.StringVar(&newRule.Destination.Type, "destination-type", dfw.TypeIPv4Address, "destination type: Ipv4Address or VirtualWire")
	f.StringVar(&newRule.Destination.Value, "destination-value", "", "destination address, subnet or logical switch id")
	f.StringVar(&newRule.Destination.Name, "destination-name", "", "destination logical switch name")
	f.BoolVar(&newRule.Destination.Excluded, "destination-excluded", false, "match everything except the destination")

	f.StringVar(&newRule.Service.Name, "service-name", "", "catalog service name, or any")
	f.StringVar(&newRule.Service.ProtocolName, "service-protocol", "", "protocol name, e.g. TCP")
	f.StringVar(&newRule.Service.SourcePort, "service-source-port", "", "service source port")
	f.StringVar(&newRule.Service.DestinationPort, "service-destination-port", "", "service destination port")

	f.StringVar(&newRule.ApplyTo.Type, "applyto-type", dfw.TypeDistributedFirewall, "Edge, VirtualWire or DISTRIBUTED_FIREWALL")
	f.StringVar(&newRule.ApplyTo.ID, "applyto-id", "", "edge or logical switch id")
	f.StringVar(&newRule.ApplyTo.Name, "applyto-name", "", "edge or logical switch name")

	rulesCreateCmd.MarkFlagsOneRequired("section-id", "section-name")
	rulesCreateCmd.MarkFlagsMutuallyExclusive("section-id", "section-name")
	_ = rulesCreateCmd.MarkFlagRequired("name")
}

func runRulesCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var r dfw.Rule
	err = a.withRetry("create rule", func() error {
		r, err = a.coordinator.CreateRule(cmd.Context(), newRule)
		return err
	})
	if err != nil {
		return err
	}

	return a.render(cmd, output.View{
		Message: fmt.Sprintf("Rule %s created with ID %s", r.Name, r.ID),
		Tables:  []dfw.Table{dfw.RuleTable("", []dfw.Rule{r})},
		Data:    r,
	})
}
