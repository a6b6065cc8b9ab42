package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/geto-app/geto/internal/adb"
	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/usecase"
)

// runOutput is the result of apply, revert and launch.
type runOutput struct {
	UseCase     string               `json:"use_case"`
	Package     string               `json:"package"`
	Outcome     domain.Outcome       `json:"outcome"`
	Message     string               `json:"message,omitempty"`
	Intent      *domain.LaunchIntent `json:"intent,omitempty"`
	Launched    bool                 `json:"launched"`
	LaunchError string               `json:"launch_error,omitempty"`
	Remediation string               `json:"remediation,omitempty"`
}

// failed reports outcomes that mean the device was left without the
// requested values.
func (r runOutput) failed() bool {
	switch r.Outcome {
	case domain.OutcomeFailure, domain.OutcomeNoPermission, domain.OutcomeInvalidValue:
		return true
	default:
		return false
	}
}

func newApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "apply <package>",
		Short:         "Write the launch values of a package and start it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runApply,
	}
	cmd.Flags().Bool("no-launch", false, "Write the settings without starting the app")
	return cmd
}

func newRevertCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "revert <package>",
		Short:         "Write the revert values of a package",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRevert,
	}
}

func newLaunchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "launch <package>",
		Short: "Auto-launch a package when the auto-launch preference is on",
		Long: `Apply the profile of a package and start it, but only when the
use_auto_launch preference is enabled and the profile has enabled entries.
Otherwise nothing happens.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runAutoLaunch,
	}
}

func runApply(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	pkg, err := packageArg(args)
	if err != nil {
		return out.Error("Invalid package", err)
	}
	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	ctx := commandContext(cmd)
	result, err := env.apply.Apply(ctx, pkg)
	if err != nil {
		return out.Error("Failed to apply settings", err)
	}

	res := runOutput{UseCase: usecase.UseCaseApply, Package: pkg, Outcome: result.Outcome, Intent: result.Intent}
	if noLaunch, _ := cmd.Flags().GetBool("no-launch"); !noLaunch {
		launchIntent(ctx, env.adb, &res)
	}
	return reportRun(out, env.adb, res)
}

func runRevert(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	pkg, err := packageArg(args)
	if err != nil {
		return out.Error("Invalid package", err)
	}
	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	result, err := env.revert.Revert(commandContext(cmd), pkg)
	if err != nil {
		return out.Error("Failed to revert settings", err)
	}
	res := runOutput{UseCase: usecase.UseCaseRevert, Package: pkg, Outcome: result.Outcome}
	res.Message = result.Message()
	return reportRun(out, env.adb, res)
}

func runAutoLaunch(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	pkg, err := packageArg(args)
	if err != nil {
		return out.Error("Invalid package", err)
	}
	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	ctx := commandContext(cmd)
	result, err := env.launch.Run(ctx, pkg)
	if err != nil {
		return out.Error("Failed to auto-launch", err)
	}
	res := runOutput{UseCase: usecase.UseCaseAutoLaunch, Package: pkg, Outcome: result.Outcome, Intent: result.Intent}
	launchIntent(ctx, env.adb, &res)
	return reportRun(out, env.adb, res)
}

// launchIntent starts the app after a successful run. A missing intent is
// not an error; the settings are already written.
func launchIntent(ctx context.Context, client *adb.Client, res *runOutput) {
	if res.Outcome != domain.OutcomeSuccess || res.Intent == nil {
		return
	}
	if err := client.Launch(ctx, *res.Intent); err != nil {
		log.Printf("[CLI] launch %s: %v", res.Intent.Component, err)
		res.LaunchError = err.Error()
		return
	}
	res.Launched = true
}

// reportRun renders the outcome of a use case run. Failed outcomes make the
// command exit non-zero.
func reportRun(out *OutputFormatter, client *adb.Client, res runOutput) error {
	if res.Message == "" {
		res.Message = res.Outcome.Message()
	}
	if res.Outcome == domain.OutcomeNoPermission {
		res.Remediation = client.PermissionGrantCommand(res.Package)
	}

	if out.jsonMode {
		if err := out.Print(res); err != nil {
			return err
		}
	} else {
		printRun(res)
	}

	if res.failed() {
		return reportedError{fmt.Errorf("%s %s: %s", res.UseCase, res.Package, res.Outcome)}
	}
	return nil
}

func printRun(res runOutput) {
	switch res.Outcome {
	case domain.OutcomeIgnored:
		return
	case domain.OutcomeNoPermission:
		fmt.Println(res.Message)
		fmt.Println("Grant the permission once with:")
		fmt.Printf("  %s\n", res.Remediation)
		return
	}

	fmt.Println(res.Message)
	switch {
	case res.Launched:
		fmt.Printf("Started %s\n", res.Intent.Component)
	case res.LaunchError != "":
		fmt.Printf("Could not start %s: %s\n", res.Package, res.LaunchError)
	case res.Outcome == domain.OutcomeSuccess && res.Intent == nil && res.UseCase != usecase.UseCaseRevert:
		fmt.Printf("%s has no launcher activity; settings were written without starting it.\n", res.Package)
	}
}
