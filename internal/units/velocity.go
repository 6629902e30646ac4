package units

// MetersPerSecondToKmh converts m/s to km/h.
func MetersPerSecondToKmh(mps float64) float64 {
	return mps * 3.6
}

// KmhToMetersPerSecond converts km/h to m/s.
func KmhToMetersPerSecond(kmh float64) float64 {
	return kmh / 3.6
}

// FeetToMeters converts a length in feet to metres. Pitch lengths are
// sometimes entered in feet during calibration.
func FeetToMeters(feet float64) float64 {
	return feet * 0.3048
}
