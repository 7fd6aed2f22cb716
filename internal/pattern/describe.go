package pattern

// Info is the human-facing description of a pattern.
type Info struct {
	Key         Pattern `json:"key"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

var catalog = []Info{
	{Key: Doji, Label: "Doji", Description: "Open and close are nearly equal, signaling indecision."},
	{Key: Hammer, Label: "Hammer", Description: "Small body with long lower wick after a decline."},
	{Key: BullishEngulfing, Label: "Bullish Engulfing", Description: "Bullish candle fully engulfs prior bearish body."},
	{Key: BearishEngulfing, Label: "Bearish Engulfing", Description: "Bearish candle fully engulfs prior bullish body."},
}

// Describe returns the catalog entry for p. None has no entry.
func Describe(p Pattern) (Info, bool) {
	for _, info := range catalog {
		if info.Key == p {
			return info, true
		}
	}
	return Info{}, false
}

// Catalog lists every recognisable pattern.
func Catalog() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}
