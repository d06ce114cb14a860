package cache

import "time"

// Tag attached to every cached vehicle list.
const TagVehicleLists = "vehicle_lists"

type CacheConfig struct {
	VehicleDataTTL time.Duration `json:"vehicleDataTTL"`
	VehicleListTTL time.Duration `json:"vehicleListTTL"`
	RouteListTTL   time.Duration `json:"routeListTTL"`
	KeyPrefix      string        `json:"keyPrefix"`
	TagPrefix      string        `json:"tagPrefix"`
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		VehicleDataTTL: 30 * time.Second,
		VehicleListTTL: 2 * time.Minute,
		RouteListTTL:   10 * time.Minute,
		KeyPrefix:      "mileage:",
		TagPrefix:      "mileage_tag:",
	}
}

func (c CacheConfig) GetTTLForDataType(dataType string) time.Duration {
	switch dataType {
	case "vehicle":
		return c.VehicleDataTTL
	case "vehicle_list":
		return c.VehicleListTTL
	case "route_list":
		return c.RouteListTTL
	default:
		return c.VehicleDataTTL
	}
}

// tagTTL keeps tag sets alive longer than any key they point at.
func (c CacheConfig) tagTTL() time.Duration {
	longest := c.VehicleDataTTL
	for _, ttl := range []time.Duration{c.VehicleListTTL, c.RouteListTTL} {
		if ttl > longest {
			longest = ttl
		}
	}
	return longest * 2
}
