package model

// AssetClass groups assets that share simulated volatility characteristics.
type AssetClass string

const (
	ClassStocks      AssetClass = "Stocks"
	ClassBonds       AssetClass = "Bonds"
	ClassCrypto      AssetClass = "Crypto"
	ClassFX          AssetClass = "FX"
	ClassCommodities AssetClass = "Commodities"
)

// Asset is a tradeable symbol in the simulator.
type Asset struct {
	Symbol string     `json:"symbol"`
	Name   string     `json:"name"`
	Class  AssetClass `json:"class"`
}

var universe = []Asset{
	{Symbol: "AAPL", Name: "Apple", Class: ClassStocks},
	{Symbol: "MSFT", Name: "Microsoft", Class: ClassStocks},
	{Symbol: "TSLA", Name: "Tesla", Class: ClassStocks},
	{Symbol: "TLT", Name: "Treasury Bond", Class: ClassBonds},
	{Symbol: "LQD", Name: "Corporate Bond", Class: ClassBonds},
	{Symbol: "BTC", Name: "Bitcoin", Class: ClassCrypto},
	{Symbol: "ETH", Name: "Ethereum", Class: ClassCrypto},
	{Symbol: "EURUSD", Name: "Euro / US Dollar", Class: ClassFX},
	{Symbol: "XAU", Name: "Gold", Class: ClassCommodities},
}

// Universe returns a copy of the supported asset list.
func Universe() []Asset {
	out := make([]Asset, len(universe))
	copy(out, universe)
	return out
}

// LookupAsset finds an asset by symbol.
func LookupAsset(symbol string) (Asset, bool) {
	for _, a := range universe {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}
