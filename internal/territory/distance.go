package territory

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/prospect-cli/internal/model"
)

// EarthRadiusKM is the IUGG mean Earth radius.
const EarthRadiusKM = 6371.0088

// Point returns c as an SRID 4326 point (x = lng, y = lat).
func Point(c model.Coordinates) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat}).SetSRID(4326)
}

// DistanceKM returns the great-circle distance between a and b.
func DistanceKM(a, b model.Coordinates) float64 {
	// Fixed operand order keeps the result bit-identical in both directions.
	if b.Lat < a.Lat || (b.Lat == a.Lat && b.Lng < a.Lng) {
		a, b = b, a
	}
	return haversine(Point(a), Point(b))
}

func haversine(p, q *geom.Point) float64 {
	lat1 := p.Y() * math.Pi / 180
	lat2 := q.Y() * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (q.X() - p.X()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}
