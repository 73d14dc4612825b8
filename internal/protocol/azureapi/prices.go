package azureapi

import (
	"net/http"
	"strings"
)

// retailPrice is one row of the static Retail Prices page.
type retailPrice struct {
	CurrencyCode  string  `json:"currencyCode"`
	RetailPrice   float64 `json:"retailPrice"`
	UnitPrice     float64 `json:"unitPrice"`
	ArmRegionName string  `json:"armRegionName"`
	ProductName   string  `json:"productName"`
	SkuName       string  `json:"skuName"`
	ServiceName   string  `json:"serviceName"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
	Type          string  `json:"type"`
}

// A small fixed catalog; enough for clients that page and filter.
var retailCatalog = []retailPrice{
	{"USD", 0.096, 0.096, "eastus", "Virtual Machines D Series", "D2s v3", "Virtual Machines", "1 Hour", "Consumption"},
	{"USD", 0.192, 0.192, "eastus", "Virtual Machines D Series", "D4s v3", "Virtual Machines", "1 Hour", "Consumption"},
	{"USD", 0.384, 0.384, "westeurope", "Virtual Machines D Series", "D8s v3", "Virtual Machines", "1 Hour", "Consumption"},
	{"USD", 0.0184, 0.0184, "eastus", "Blob Storage", "Hot LRS", "Storage", "1 GB/Month", "Consumption"},
	{"USD", 0.01, 0.01, "westeurope", "Blob Storage", "Cool LRS", "Storage", "1 GB/Month", "Consumption"},
	{"USD", 0.25, 0.25, "eastus", "Azure Cosmos DB", "400 RU/s", "Azure Cosmos DB", "1 Hour", "Consumption"},
	{"USD", 0.02, 0.02, "eastus", "Functions", "Consumption Execution", "Functions", "1M Executions", "Consumption"},
}

func (a *API) retailPrices(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("$filter")
	items := make([]retailPrice, 0, len(retailCatalog))
	for _, p := range retailCatalog {
		if matchesFilter(p, filter) {
			items = append(items, p)
		}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"BillingCurrency":    "USD",
		"CustomerEntityId":   "Default",
		"CustomerEntityType": "Retail",
		"Items":              items,
		"NextPageLink":       nil,
		"Count":              len(items),
	})
}

// matchesFilter evaluates the subset of OData this page supports:
// "field eq 'value'" clauses joined by "and".
func matchesFilter(p retailPrice, filter string) bool {
	if filter == "" {
		return true
	}
	for _, clause := range strings.Split(filter, " and ") {
		parts := strings.SplitN(strings.TrimSpace(clause), " eq ", 2)
		if len(parts) != 2 {
			return false
		}
		want := strings.Trim(strings.TrimSpace(parts[1]), "'")
		var got string
		switch strings.TrimSpace(parts[0]) {
		case "serviceName":
			got = p.ServiceName
		case "armRegionName":
			got = p.ArmRegionName
		case "skuName":
			got = p.SkuName
		case "productName":
			got = p.ProductName
		case "type":
			got = p.Type
		default:
			return false
		}
		if !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}
