package refdata

// ActualSize is the true machined dimension of a nominal lumber profile,
// in inches.
type ActualSize struct {
	Thickness float64
	Width     float64
}

// Tables holds the static lookup data consulted during normalization.
// Build once with Default (or hand-rolled in tests) and inject; the
// normalizers never reach for package globals.
type Tables struct {
	NominalActual map[string]ActualSize
	LumberBundles map[string]map[string]int
	SheetBundles  map[float64]int
	Density       map[string]float64
}

// Default returns the version-controlled reference tables.
func Default() *Tables {
	return &Tables{
		NominalActual: map[string]ActualSize{
			"1x4":    {0.75, 3.50},
			"1x5":    {0.75, 4.72},
			"1x6":    {0.75, 5.50},
			"5/4x4":  {1.00, 3.50},
			"5/4x5":  {1.00, 4.72},
			"5/4x6":  {1.00, 5.50},
			"5/4x8":  {1.00, 7.25},
			"5/4x10": {1.00, 9.25},
			"5/4x12": {1.00, 11.25},
			"2x2":    {1.50, 1.50},
			"2x4":    {1.50, 3.50},
			"2x6":    {1.50, 5.50},
			"2x8":    {1.50, 7.25},
			"2x10":   {1.50, 9.25},
			"2x12":   {1.50, 11.25},
			"3x4":    {2.50, 3.50},
			"3x6":    {2.50, 5.50},
			"3x8":    {2.50, 7.25},
			"3x10":   {2.50, 9.25},
			"3x12":   {2.50, 11.25},
			"4x4":    {3.50, 3.50},
			"4x6":    {3.50, 5.50},
			"6x6":    {5.50, 5.50},
		},
		LumberBundles: map[string]map[string]int{
			"Southern Yellow Pine": {
				"2x4":  208,
				"2x6":  128,
				"2x8":  96,
				"2x10": 80,
				"2x12": 64,
				"4x4":  52, // differs between mills; GS quotes 104
			},
			"European Spruce": {
				"2x4":  294,
				"2x6":  189,
				"2x8":  147,
				"2x10": 105,
				"2x12": 84,
			},
		},
		SheetBundles: map[float64]int{
			0.5:  66,
			0.75: 44,
		},
		// lb per cubic foot
		Density: map[string]float64{
			"Southern Yellow Pine": 34,
			"European Spruce":      23,
			"Birch":                45,
			"Fir":                  35,
		},
	}
}

// ActualFor returns the actual dimensions of a nominal profile key.
func (t *Tables) ActualFor(profile string) (ActualSize, bool) {
	size, ok := t.NominalActual[profile]
	return size, ok
}

func (t *Tables) DensityOf(species string) (float64, bool) {
	d, ok := t.Density[species]
	return d, ok
}

// LumberBundle returns the pieces-per-bundle count for a species/profile
// pair, or false when the pack size is unknown.
func (t *Tables) LumberBundle(species, profile string) (int, bool) {
	profiles, ok := t.LumberBundles[species]
	if !ok {
		return 0, false
	}
	size, ok := profiles[profile]
	return size, ok
}

// SheetBundle returns the sheets-per-bundle count for a panel thickness.
func (t *Tables) SheetBundle(thickness float64) (int, bool) {
	size, ok := t.SheetBundles[thickness]
	return size, ok
}
