package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/trajectory/internal/config"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

// formView mirrors the fields of GET /users/{user}/goals the CLI needs.
type formView struct {
	Generation          uint64   `json:"generation"`
	Roles               []string `json:"roles"`
	RoleIndex           int      `json:"role_index"`
	LearningModes       []string `json:"learning_modes"`
	LearningModeIndex   int      `json:"learning_mode_index"`
	Timeframes          []string `json:"timeframes"`
	TimeframeIndex      int      `json:"timeframe_index"`
	CustomMonths        int      `json:"custom_timeframe_months"`
	Motivation          string   `json:"motivation"`
	CurrentSkillOptions []string `json:"current_skill_options"`
	CurrentSkills       []string `json:"current_skills"`
	TargetSkillOptions  []string `json:"target_skill_options"`
	TargetSkills        []string `json:"target_skills"`
	ResumeNotice        string   `json:"resume_notice"`
	SubmitLabel         string   `json:"submit_label"`
	HasAnalysis         bool     `json:"has_analysis"`
}

func pick(list []string, i int) string {
	if i >= 0 && i < len(list) {
		return list[i]
	}
	return ""
}

func fetchForm(ctx context.Context, client *apiClient, user string) (formView, error) {
	resp, err := client.get(ctx, userPath(user, "/goals"))
	if err != nil {
		return formView{}, err
	}
	var view formView
	if err := decodeJSON(resp, &view); err != nil {
		return formView{}, err
	}
	return view, nil
}

// submitResult mirrors the body of POST /users/{user}/goals.
type submitResult struct {
	State           string          `json:"state"`
	Path            []string        `json:"path"`
	Generation      uint64          `json:"generation"`
	Saved           bool            `json:"saved"`
	Next            string          `json:"next"`
	ExtractionError string          `json:"extraction_error"`
	Steps           []string        `json:"steps"`
	RunID           string          `json:"run_id"`
	Analysis        json.RawMessage `json:"analysis"`
	AnalysisSaved   bool            `json:"analysis_saved"`
	Profile         struct {
		CurrentSkills []string `json:"current_skills"`
		TargetSkills  []string `json:"target_skills"`
	} `json:"profile"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// postGoals sends a goals form. Outcomes other than admission failures are
// returned with their body even when the status is not 200.
func postGoals(ctx context.Context, client *apiClient, user string, form goalsForm) (submitResult, error) {
	resp, err := client.postForm(ctx, userPath(user, "/goals"), form)
	if err != nil {
		return submitResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return submitResult{}, fmt.Errorf("reading response: %w", err)
	}
	var res submitResult
	if err := json.Unmarshal(body, &res); err != nil || res.State == "" {
		return submitResult{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return res, nil
}

func printIndented(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- goals ---

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "View and update career goals",
}

var goalsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the career goals form with saved values",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		view, err := fetchForm(cmd.Context(), client, userFlag)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return printIndented(view)
		}

		fmt.Printf("%s %s\n", colorize(colorBold, "Target role:"), pick(view.Roles, view.RoleIndex))
		fmt.Printf("%s %s\n", colorize(colorBold, "Learning mode:"), pick(view.LearningModes, view.LearningModeIndex))
		timeframe := pick(view.Timeframes, view.TimeframeIndex)
		if timeframe == taxonomy.FlexibleTimeframe {
			timeframe = fmt.Sprintf("%s (%d months)", timeframe, view.CustomMonths)
		}
		fmt.Printf("%s %s\n", colorize(colorBold, "Timeframe:"), timeframe)
		if view.Motivation != "" {
			fmt.Printf("%s %s\n", colorize(colorBold, "Motivation:"), view.Motivation)
		}
		fmt.Printf("%s %s\n", colorize(colorBold, "Current skills:"), strings.Join(view.CurrentSkills, ", "))
		fmt.Printf("%s %s\n", colorize(colorBold, "Target skills:"), strings.Join(view.TargetSkills, ", "))
		if view.ResumeNotice != "" {
			fmt.Println(colorize(colorCyan, view.ResumeNotice))
		}
		fmt.Printf("%s %s\n", colorize(colorBold, "Next action:"), view.SubmitLabel)
		return nil
	},
}

var goalsOptionsCmd = &cobra.Command{
	Use:   "options [role]",
	Short: "List selectable target skills for a role",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var options []string
		if len(args) == 0 {
			view, err := fetchForm(cmd.Context(), client, userFlag)
			if err != nil {
				return err
			}
			options = view.TargetSkillOptions
		} else {
			resp, err := client.get(cmd.Context(), userPath(userFlag, "/goals/options?role="+url.QueryEscape(args[0])))
			if err != nil {
				return err
			}
			var body struct {
				Options []string `json:"options"`
			}
			if err := decodeJSON(resp, &body); err != nil {
				return err
			}
			options = body.Options
		}
		for _, o := range options {
			fmt.Println(o)
		}
		return nil
	},
}

var goalsAddSkillCmd = &cobra.Command{
	Use:   "add-skill",
	Short: "Add a custom current and/or target skill",
	Long: `Add a custom skill without touching the rest of the saved goals.

Examples:
  trajectory goals add-skill --current "Public speaking"
  trajectory goals add-skill --target "Rust" --current "Go"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		current, _ := cmd.Flags().GetString("current")
		target, _ := cmd.Flags().GetString("target")
		if strings.TrimSpace(current) == "" && strings.TrimSpace(target) == "" {
			return errors.New("one of --current or --target is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		view, err := fetchForm(cmd.Context(), client, userFlag)
		if err != nil {
			return err
		}

		res, err := postGoals(cmd.Context(), client, userFlag, goalsForm{fields: map[string][]string{
			"generation":        {strconv.FormatUint(view.Generation, 10)},
			"new_current_skill": {current},
			"new_target_skill":  {target},
		}})
		if err != nil {
			return err
		}
		if res.Error != nil {
			return fmt.Errorf("%s", res.Error.Message)
		}

		printSuccess("Skills updated")
		printStatus("Current skills", "%s", strings.Join(res.Profile.CurrentSkills, ", "))
		printStatus("Target skills", "%s", strings.Join(res.Profile.TargetSkills, ", "))
		return nil
	},
}

var goalsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Save career goals and, with a resume, generate a skill analysis",
	Long: `Save career goals. Flags that are not given keep their saved values.

Examples:
  trajectory goals submit --role "Data Engineer" --target "Data Engineering: Spark"
  trajectory goals submit --timeframe Flexible --months 18
  trajectory goals submit --resume ./resume.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		view, err := fetchForm(cmd.Context(), client, userFlag)
		if err != nil {
			return err
		}

		form, err := submitFormFromFlags(cmd, view)
		if err != nil {
			return err
		}

		res, err := postGoals(cmd.Context(), client, userFlag, form)
		if err != nil {
			return err
		}
		return reportSubmit(res)
	},
}

// submitFormFromFlags starts from the saved form and overrides what the user
// passed explicitly.
func submitFormFromFlags(cmd *cobra.Command, view formView) (goalsForm, error) {
	fields := map[string][]string{
		"generation":    {strconv.FormatUint(view.Generation, 10)},
		"target_role":   {pick(view.Roles, view.RoleIndex)},
		"motivation":    {view.Motivation},
		"learning_mode": {pick(view.LearningModes, view.LearningModeIndex)},
		"timeframe":     {pick(view.Timeframes, view.TimeframeIndex)},
	}
	fields["current_skills"] = view.CurrentSkills
	fields["target_skills"] = view.TargetSkills
	months := view.CustomMonths

	flags := cmd.Flags()
	for flag, field := range map[string]string{
		"role":          "target_role",
		"motivation":    "motivation",
		"learning-mode": "learning_mode",
		"timeframe":     "timeframe",
	} {
		if flags.Changed(flag) {
			v, _ := flags.GetString(flag)
			fields[field] = []string{v}
		}
	}
	for flag, field := range map[string]string{
		"current": "current_skills",
		"target":  "target_skills",
	} {
		if flags.Changed(flag) {
			v, _ := flags.GetStringSlice(flag)
			fields[field] = v
		}
	}
	if flags.Changed("months") {
		months, _ = flags.GetInt("months")
	}
	if fields["timeframe"][0] == taxonomy.FlexibleTimeframe {
		fields["custom_timeframe_months"] = []string{strconv.Itoa(months)}
	}

	resumePath, _ := flags.GetString("resume")
	if resumePath != "" {
		if _, err := os.Stat(resumePath); err != nil {
			return goalsForm{}, fmt.Errorf("resume: %w", err)
		}
	}
	return goalsForm{fields: fields, resumePath: resumePath}, nil
}

func reportSubmit(res submitResult) error {
	if res.ExtractionError != "" {
		printWarning("Resume not used: %s", res.ExtractionError)
	}
	for _, step := range res.Steps {
		printStep("%s", step)
	}

	switch res.State {
	case "analysis_done":
		printSuccess("Career goals saved")
		if !res.AnalysisSaved {
			printWarning("Analysis generated but could not be stored")
		}
		return printIndented(res.Analysis)
	case "persisted", "rerendered":
		printSuccess("Career goals saved")
		return nil
	case "analysis_failed":
		printSuccess("Career goals saved")
		if res.Error != nil {
			return fmt.Errorf("analysis failed: %s", res.Error.Message)
		}
		return errors.New("analysis failed")
	default:
		if res.Error != nil {
			return fmt.Errorf("%s", res.Error.Message)
		}
		return fmt.Errorf("submission ended in state %s", res.State)
	}
}

func addSubmitFlags(cmd *cobra.Command) {
	cmd.Flags().String("role", "", "target role")
	cmd.Flags().String("motivation", "", "why this role")
	cmd.Flags().StringSlice("current", nil, "current skills (replaces the saved list)")
	cmd.Flags().StringSlice("target", nil, "target skills (replaces the saved list)")
	cmd.Flags().String("learning-mode", "", "preferred learning mode")
	cmd.Flags().String("timeframe", "", "timeframe to reach the goal")
	cmd.Flags().Int("months", 0, "months for a flexible timeframe")
	cmd.Flags().String("resume", "", "resume file (.pdf, .docx or .txt)")
}

func init() {
	goalsShowCmd.Flags().Bool("json", false, "print the raw form view")

	goalsAddSkillCmd.Flags().String("current", "", "custom skill the user already has")
	goalsAddSkillCmd.Flags().String("target", "", "custom skill the user wants to learn")

	addSubmitFlags(goalsSubmitCmd)

	goalsCmd.AddCommand(goalsShowCmd)
	goalsCmd.AddCommand(goalsOptionsCmd)
	goalsCmd.AddCommand(goalsAddSkillCmd)
	goalsCmd.AddCommand(goalsSubmitCmd)
}

// --- role ---

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage the current role profile",
}

var roleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current role and experience",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), userPath(userFlag, "/role-profile"))
		if err != nil {
			return err
		}
		var info struct {
			Role       string `json:"role"`
			Experience string `json:"experience"`
		}
		if err := decodeJSON(resp, &info); err != nil {
			return err
		}
		printStatus("Role", "%s", info.Role)
		printStatus("Experience", "%s", info.Experience)
		return nil
	},
}

var roleSetCmd = &cobra.Command{
	Use:   "set <role>",
	Short: "Set the current role and experience",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		experience, _ := cmd.Flags().GetString("experience")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), userPath(userFlag, "/role-profile"), map[string]string{
			"role":       args[0],
			"experience": experience,
		})
		if err != nil {
			return err
		}
		if err := expectNoContent(resp); err != nil {
			return err
		}
		printSuccess("Current role set to %s", args[0])
		return nil
	},
}

func init() {
	roleSetCmd.Flags().String("experience", "", "years or level of experience")
	roleCmd.AddCommand(roleShowCmd)
	roleCmd.AddCommand(roleSetCmd)
}

// --- analysis ---

var analysisCmd = &cobra.Command{
	Use:   "analysis",
	Short: "Inspect skill analyses",
}

var analysisShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest stored skill analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), userPath(userFlag, "/analysis"))
		if err != nil {
			return err
		}
		if resp.StatusCode == 404 {
			resp.Body.Close()
			fmt.Println("No analysis available yet.")
			return nil
		}
		var out json.RawMessage
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		return printIndented(out)
	},
}

var analysisRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), userPath(userFlag, fmt.Sprintf("/analysis/runs?limit=%d", limit)))
		if err != nil {
			return err
		}
		var runs []struct {
			ID         string `json:"id"`
			Status     string `json:"status"`
			TargetRole string `json:"target_role"`
			Error      string `json:"error"`
			StartedAt  string `json:"started_at"`
		}
		if err := decodeJSON(resp, &runs); err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No analysis runs found.")
			return nil
		}
		for _, run := range runs {
			status := run.Status
			switch status {
			case "succeeded":
				status = colorize(colorGreen, status)
			case "failed":
				status = colorize(colorRed, status)
			}
			line := fmt.Sprintf("%s  %s  %-9s  %s", colorize(colorCyan, shortID(run.ID)), run.StartedAt, status, run.TargetRole)
			if run.Error != "" {
				line += "  " + run.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	analysisRunsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	analysisCmd.AddCommand(analysisShowCmd)
	analysisCmd.AddCommand(analysisRunsCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetPipelineKeyCmd = &cobra.Command{
	Use:   "set-pipeline-key <key>",
	Short: "Store the analysis pipeline API key in the secrets file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetPipelineKey(config.NewSecrets(), args[0]); err != nil {
			return err
		}
		printSuccess("Pipeline API key stored")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetPipelineKeyCmd)
}
