package gcpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// sku is one row of the static Cloud Billing SKU page.
type sku struct {
	Name        string `json:"name"`
	SkuID       string `json:"skuId"`
	Description string `json:"description"`
	Category    struct {
		ServiceDisplayName string `json:"serviceDisplayName"`
		ResourceFamily     string `json:"resourceFamily"`
		ResourceGroup      string `json:"resourceGroup"`
		UsageType          string `json:"usageType"`
	} `json:"category"`
	ServiceRegions []string `json:"serviceRegions"`
}

func makeSKU(service, id, description, family, group, usage string, regions ...string) sku {
	s := sku{
		Name:        "services/" + service + "/skus/" + id,
		SkuID:       id,
		Description: description,
	}
	s.Category.ServiceDisplayName = family
	s.Category.ResourceFamily = family
	s.Category.ResourceGroup = group
	s.Category.UsageType = usage
	s.ServiceRegions = regions
	return s
}

func (a *API) listSKUs(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	skus := []sku{
		makeSKU(service, "0A00-1B2C-3D4E", "N2 Instance Core running in Americas", "Compute", "CPU", "OnDemand", "us-central1", "us-east1"),
		makeSKU(service, "1F11-2A3B-4C5D", "N2 Instance Ram running in Americas", "Compute", "RAM", "OnDemand", "us-central1", "us-east1"),
		makeSKU(service, "2E22-3B4C-5D6E", "Standard Storage US Regional", "Storage", "SSD", "OnDemand", "us-central1"),
		makeSKU(service, "3D33-4C5D-6E7F", "Network Egress via Carrier Peering", "Network", "PremiumInternetEgress", "OnDemand", "us-central1", "europe-west1"),
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"skus":          skus,
		"nextPageToken": "",
	})
}
