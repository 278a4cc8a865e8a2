package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"schoolbus/internal/domain"
)

// LoadCSV reads students from a CSV file with a header row. Recognized
// columns: id, first_name, last_name, grade, pickup_latitude,
// pickup_longitude, active. Missing optional columns are left zero.
func LoadCSV(path string) ([]domain.Student, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read roster header: %w", err)
	}

	idx := makeIndex(header)
	if _, ok := idx["id"]; !ok {
		return nil, fmt.Errorf("roster CSV missing id column")
	}

	var students []domain.Student
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster row: %w", err)
		}

		s := domain.Student{
			ID:        getField(record, idx, "id"),
			FirstName: getField(record, idx, "first_name"),
			LastName:  getField(record, idx, "last_name"),
			Grade:     getField(record, idx, "grade"),
			Active:    true,
		}
		if s.ID == "" {
			continue
		}

		if v := getField(record, idx, "pickup_latitude"); v != "" {
			if lat, err := strconv.ParseFloat(v, 64); err == nil {
				s.PickupLat = &lat
			}
		}
		if v := getField(record, idx, "pickup_longitude"); v != "" {
			if lng, err := strconv.ParseFloat(v, 64); err == nil {
				s.PickupLng = &lng
			}
		}
		if v := getField(record, idx, "active"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				s.Active = b
			}
		}

		students = append(students, s)
	}

	return students, nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.ToLower(name))] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
