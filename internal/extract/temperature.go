package extract

// Temperature units understood by the converter.
const (
	UnitCelsius    = "°C"
	UnitFahrenheit = "°F"
	UnitKelvin     = "K"
)

func isTemperatureUnit(unit string) bool {
	switch unit {
	case UnitCelsius, UnitFahrenheit, UnitKelvin:
		return true
	}
	return false
}

// convertTemperature converts v from one temperature unit to another.
// Unknown units pass the value through unchanged.
func convertTemperature(v float64, from, to string) float64 {
	if from == to || !isTemperatureUnit(from) || !isTemperatureUnit(to) {
		return v
	}

	var celsius float64
	switch from {
	case UnitCelsius:
		celsius = v
	case UnitFahrenheit:
		celsius = (v - 32) / 1.8
	case UnitKelvin:
		celsius = v - 273.15
	}

	switch to {
	case UnitFahrenheit:
		return celsius*1.8 + 32
	case UnitKelvin:
		return celsius + 273.15
	default:
		return celsius
	}
}
