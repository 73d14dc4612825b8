package awsjson

import (
	"localcloud/internal/storage/engine"
)

func parameterEntry(p *engine.SSMParameter, withValue bool) map[string]any {
	out := map[string]any{
		"Name":             p.Name,
		"Type":             p.Type,
		"Version":          p.Version,
		"LastModifiedDate": epoch(p.UpdatedAt),
	}
	if withValue {
		out["Value"] = p.Value
	}
	return out
}

func (a *API) ssm(op string, body []byte) (any, error) {
	switch op {
	case "PutParameter":
		var req struct {
			Name      string `json:"Name"`
			Type      string `json:"Type"`
			Value     string `json:"Value"`
			Overwrite bool   `json:"Overwrite"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		p, err := a.eng.PutParameter(req.Name, req.Type, req.Value, req.Overwrite)
		if err != nil {
			return nil, err
		}
		return map[string]any{"Version": p.Version, "Tier": "Standard"}, nil

	case "GetParameter":
		var req struct {
			Name string `json:"Name"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		p, err := a.eng.GetParameter(req.Name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"Parameter": parameterEntry(p, true)}, nil

	case "GetParameters":
		var req struct {
			Names []string `json:"Names"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		found, missing, err := a.eng.GetParameters(req.Names)
		if err != nil {
			return nil, err
		}
		params := make([]map[string]any, 0, len(found))
		for i := range found {
			params = append(params, parameterEntry(&found[i], true))
		}
		if missing == nil {
			missing = []string{}
		}
		return map[string]any{"Parameters": params, "InvalidParameters": missing}, nil

	case "DeleteParameter":
		var req struct {
			Name string `json:"Name"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.DeleteParameter(req.Name); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "DescribeParameters":
		var req struct {
			ParameterFilters []struct {
				Key    string   `json:"Key"`
				Option string   `json:"Option"`
				Values []string `json:"Values"`
			} `json:"ParameterFilters"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		prefix := ""
		for _, f := range req.ParameterFilters {
			if f.Key == "Name" && len(f.Values) > 0 {
				prefix = f.Values[0]
				break
			}
		}
		params, err := a.eng.DescribeParameters(prefix)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(params))
		for i := range params {
			out = append(out, parameterEntry(&params[i], false))
		}
		return map[string]any{"Parameters": out}, nil
	}
	return nil, notImplemented("AmazonSSM", op)
}
