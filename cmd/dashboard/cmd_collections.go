package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smukkama/weather-dashboard/internal/alerts"
	"github.com/smukkama/weather-dashboard/internal/favorites"
	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/internal/weather"
)

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Aliases: []string{"fav"},
	Short:   "Manage favorite locations",
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorites in the order they were added",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		list := app.Favorites().List(ctx)
		if asJSON {
			return printJSON(cmd, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No favorites yet")
			return nil
		}

		unit := app.Settings().GetAll(ctx).TempUnit
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tLOCATION\tWEATHER")
		for _, f := range list {
			mark := ""
			if f.IsDefault {
				mark = "*"
			}
			current := "-"
			if f.CurrentWeather != nil && f.CurrentWeather.Temp != nil {
				current = formatTemp(*f.CurrentWeather.Temp, unit) + " " + f.CurrentWeather.Condition
			}
			fmt.Fprintf(w, "%s\t%s\t%s, %s\t%s\n", mark, f.ID, f.Name, f.Country, current)
		}
		return w.Flush()
	},
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add <city>",
	Short: "Look up a city and save it as a favorite",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		cities, err := app.SearchCities(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(cities) == 0 {
			return fmt.Errorf("no city matches %q: %w", strings.Join(args, " "), weather.ErrNotFound)
		}

		c := cities[0]
		fav, err := app.Favorites().Add(ctx, favorites.Location{
			Name: c.Name, Country: c.Country, State: c.State, Lat: c.Lat, Lon: c.Lon,
		})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, fav)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s, %s (%d/%d)\n",
			fav.Name, fav.Country, len(app.Favorites().List(ctx)), app.Favorites().Max())
		return nil
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := app.Favorites().Remove(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Removed")
		return nil
	},
}

var favoritesDefaultCmd = &cobra.Command{
	Use:   "default [id]",
	Short: "Show or set the default favorite",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if len(args) == 1 {
			if err := app.Favorites().SetDefault(ctx, args[0]); err != nil {
				return err
			}
		}
		fav, err := app.Favorites().Default(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, fav)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default: %s, %s\n", fav.Name, fav.Country)
		return nil
	},
}

var favoritesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch weather for every favorite and check its alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		result, err := app.RefreshFavorites(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d, failed %d\n", result.Refreshed, result.Failed)
		printTriggered(cmd, result.Triggered)
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Manage recent searches",
}

var recentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent searches, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		list := app.Searches().List(ctx)
		if asJSON {
			return printJSON(cmd, list)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Location, s.Timestamp.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var recentRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove one recent search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return app.Searches().Remove(ctx, args[0])
	},
}

var recentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every recent search",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return app.Searches().Clear(ctx)
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change preferences",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s := app.Settings().GetAll(ctx)
		if asJSON {
			return printJSON(cmd, s)
		}
		for _, key := range settings.Keys {
			v, err := app.Settings().Get(ctx, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %v\n", key, v)
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long:  "Change one setting. Keys: " + strings.Join(settings.Keys, ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := app.Settings().Set(ctx, args[0], args[1]); err != nil {
			return err
		}
		v, _ := app.Settings().Get(ctx, args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], v)
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return app.Settings().Reset(ctx)
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage weather alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		list := app.Alerts().List(ctx)
		if asJSON {
			return printJSON(cmd, list)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLOCATION\tRULE\tACTIVE\tTRIGGERED")
		for _, a := range list {
			fmt.Fprintf(w, "%s\t%s\t%s %s %v%s\t%t\t%d\n",
				a.ID, a.LocationName, a.AlertType, a.Condition, a.Threshold, a.AlertType.Unit(), a.IsActive, a.TriggerCount)
		}
		return w.Flush()
	},
}

var alertsAddCmd = &cobra.Command{
	Use:   "add <favorite-id> <type> <condition> <threshold>",
	Short: "Create an alert on a favorite location",
	Long: "Create an alert on a favorite location.\n" +
		"Types: temperature, humidity, wind, rain. Conditions: above, below, equals.",
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		fav, err := app.Favorites().Get(ctx, args[0])
		if err != nil {
			return err
		}
		alert, err := app.Alerts().Add(ctx, alerts.Spec{
			LocationID:   fav.ID,
			LocationName: fav.Name,
			AlertType:    args[1],
			Condition:    args[2],
			Threshold:    args[3],
		})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, alert)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created alert %s\n", alert.ID)
		return nil
	},
}

var alertsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return app.Alerts().Remove(ctx, args[0])
	},
}

var alertsToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Switch an alert on or off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		alert, err := app.Alerts().Toggle(ctx, args[0])
		if err != nil {
			return err
		}
		state := "off"
		if alert.IsActive {
			state = "on"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Alert %s is %s\n", alert.ID, state)
		return nil
	},
}

var alertsCheckCmd = &cobra.Command{
	Use:   "check <city>",
	Short: "Evaluate every active alert against a city's current weather",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		snapshot, err := app.Search(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		triggered, err := app.Evaluator().Evaluate(ctx, snapshot.Current)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, triggered)
		}
		if len(triggered) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No alerts triggered")
			return nil
		}
		printTriggered(cmd, triggered)
		return nil
	},
}

func printTriggered(cmd *cobra.Command, triggered []alerts.TriggeredAlert) {
	for _, t := range triggered {
		fmt.Fprintf(cmd.OutOrStdout(), "! %s\n", t.Message)
	}
}

func init() {
	favoritesCmd.AddCommand(favoritesListCmd, favoritesAddCmd, favoritesRemoveCmd, favoritesDefaultCmd, favoritesRefreshCmd)
	recentCmd.AddCommand(recentListCmd, recentRemoveCmd, recentClearCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsResetCmd)
	alertsCmd.AddCommand(alertsListCmd, alertsAddCmd, alertsRemoveCmd, alertsToggleCmd, alertsCheckCmd, alertsJournalCmd)
}
