package cache

import "fmt"

const (
	KeyStudents  = "students"
	KeyRouteList = "routes"
)

func KeyMapView(routeID string) string {
	return fmt.Sprintf("mapview:%s", routeID)
}
