package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/internal/weather"
)

var searchCmd = &cobra.Command{
	Use:   "search <city>",
	Short: "Show current weather for a city and remember the search",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		snapshot, err := app.Search(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, snapshot)
		}
		printSnapshot(ctx, cmd.OutOrStdout(), snapshot)
		return nil
	},
}

var forecastCmd = &cobra.Command{
	Use:   "forecast <city>",
	Short: "Show the 5-day forecast for a city",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		forecast, err := app.Forecast(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, forecast)
		}

		unit := app.Settings().GetAll(ctx).TempUnit
		out := cmd.OutOrStdout()
		for _, day := range forecast.Daily {
			fmt.Fprintf(out, "%-10s %s  %6s / %-6s  %s\n",
				day.Day, day.Date,
				formatTemp(day.TempMax, unit), formatTemp(day.TempMin, unit), day.Condition)
		}
		return nil
	},
}

var citiesCmd = &cobra.Command{
	Use:   "cities <query>",
	Short: "Suggest cities matching a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		cities, err := app.SearchCities(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, cities)
		}
		for _, c := range cities {
			fmt.Fprintf(cmd.OutOrStdout(), "%s, %s  (%.4f, %.4f)\n", c.Name, c.Country, c.Lat, c.Lon)
		}
		return nil
	},
}

func formatTemp(v float64, unit settings.TempUnit) string {
	return settings.FormatTemperature(settings.ConvertTemperature(v, settings.Celsius, unit), unit)
}

func printSnapshot(ctx context.Context, out io.Writer, s *weather.Snapshot) {
	unit := app.Settings().GetAll(ctx).TempUnit
	r := s.Current

	fmt.Fprintf(out, "%s, %s\n", s.Location.Name, s.Location.Country)
	if r.Temp != nil {
		fmt.Fprintf(out, "  %s  %s\n", formatTemp(*r.Temp, unit), r.Description)
	}
	if r.FeelsLike != nil {
		fmt.Fprintf(out, "  feels like %s\n", formatTemp(*r.FeelsLike, unit))
	}
	if r.Humidity != nil {
		fmt.Fprintf(out, "  humidity   %.0f%%\n", *r.Humidity)
	}
	if r.WindSpeed != nil {
		fmt.Fprintf(out, "  wind       %.0f km/h %s\n", *r.WindSpeed, r.WindDirection)
	}
	if r.Precipitation != nil {
		fmt.Fprintf(out, "  rain (1h)  %.1f mm\n", *r.Precipitation)
	}
	if r.Sunrise != "" {
		fmt.Fprintf(out, "  sun        %s - %s (%s)\n", r.Sunrise, r.Sunset, r.DayLength)
	}
}
