package weather

import "strings"

// PopularCities is offered when city search cannot reach the geocoding API.
var PopularCities = []City{
	{Name: "Delhi", Country: "IN", Lat: 28.6139, Lon: 77.2090},
	{Name: "Mumbai", Country: "IN", Lat: 19.0760, Lon: 72.8777},
	{Name: "Bangalore", Country: "IN", Lat: 12.9716, Lon: 77.5946},
	{Name: "Chennai", Country: "IN", Lat: 13.0827, Lon: 80.2707},
	{Name: "Kolkata", Country: "IN", Lat: 22.5726, Lon: 88.3639},
	{Name: "Hyderabad", Country: "IN", Lat: 17.3850, Lon: 78.4867},
	{Name: "Pune", Country: "IN", Lat: 18.5204, Lon: 73.8567},
	{Name: "Ahmedabad", Country: "IN", Lat: 23.0225, Lon: 72.5714},
	{Name: "Jaipur", Country: "IN", Lat: 26.9124, Lon: 75.7873},
	{Name: "Surat", Country: "IN", Lat: 21.1702, Lon: 72.8311},
}

const maxCityResults = 5

// FilterCities returns up to five cities whose name contains query, ignoring case.
func FilterCities(cities []City, query string) []City {
	q := strings.ToLower(query)
	var result []City
	for _, c := range cities {
		if strings.Contains(strings.ToLower(c.Name), q) {
			result = append(result, c)
			if len(result) == maxCityResults {
				break
			}
		}
	}
	return result
}
