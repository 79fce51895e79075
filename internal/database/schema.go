package database

import "fmt"

// Table DDL in dependency order. Cross-entity foreign keys are DEFERRABLE
// INITIALLY DEFERRED: elements inside one document legitimately reference
// elements that appear later in the same document, so referential integrity
// is checked at transaction commit, not per statement. A violation at commit
// means the source feed itself is incomplete.
var tableDefinitions = []struct {
	name   string
	create string
}{
	{"source", `
		CREATE TABLE source(
			source_id SERIAL PRIMARY KEY,
			archive TEXT NOT NULL,
			filename TEXT NOT NULL,
			imported_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (archive, filename))`},

	{"stoppoint", `
		CREATE TABLE stoppoint(
			stoppoint_id SERIAL PRIMARY KEY,
			atcocode TEXT NOT NULL UNIQUE,
			shortcode TEXT,
			name TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION)`},

	{"interned_code", `
		CREATE TABLE interned_code(
			code_id SERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			source_id INT NOT NULL REFERENCES source(source_id),
			code TEXT NOT NULL,
			UNIQUE (kind, source_id, code))`},

	{"operator", `
		CREATE TABLE operator(
			operator_id INT PRIMARY KEY REFERENCES interned_code(code_id),
			source_id INT NOT NULL REFERENCES source(source_id),
			shortname TEXT NOT NULL)`},

	{"service", `
		CREATE TABLE service(
			service_id INT PRIMARY KEY REFERENCES interned_code(code_id),
			source_id INT NOT NULL REFERENCES source(source_id),
			operator_id INT NOT NULL REFERENCES operator(operator_id) DEFERRABLE INITIALLY DEFERRED,
			privatecode TEXT,
			mode TEXT,
			description TEXT NOT NULL)`},

	{"line", `
		CREATE TABLE line(
			line_id INT PRIMARY KEY REFERENCES interned_code(code_id),
			source_id INT NOT NULL REFERENCES source(source_id),
			service_id INT NOT NULL REFERENCES service(service_id) DEFERRABLE INITIALLY DEFERRED,
			line_name TEXT NOT NULL)`},

	{"route", `
		CREATE TABLE route(
			route_id INT PRIMARY KEY REFERENCES interned_code(code_id),
			source_id INT NOT NULL REFERENCES source(source_id),
			privatecode TEXT,
			routesection_id INT NOT NULL REFERENCES interned_code(code_id),
			description TEXT NOT NULL)`},

	{"routelink", `
		CREATE TABLE routelink(
			routelink_id INT PRIMARY KEY REFERENCES interned_code(code_id),
			source_id INT NOT NULL REFERENCES source(source_id),
			routesection_id INT NOT NULL REFERENCES interned_code(code_id),
			from_stoppoint_id INT NOT NULL REFERENCES stoppoint(stoppoint_id),
			to_stoppoint_id INT NOT NULL REFERENCES stoppoint(stoppoint_id),
			direction TEXT NOT NULL)`},

	{"journeypattern", `
		CREATE TABLE journeypattern(
			journeypattern_id INT PRIMARY KEY REFERENCES interned_code(code_id),
			source_id INT NOT NULL REFERENCES source(source_id),
			service_id INT NOT NULL REFERENCES service(service_id) DEFERRABLE INITIALLY DEFERRED,
			route_id INT REFERENCES route(route_id) DEFERRABLE INITIALLY DEFERRED,
			direction TEXT NOT NULL)`},

	{"journeypattern_section", `
		CREATE TABLE journeypattern_section(
			source_id INT NOT NULL REFERENCES source(source_id),
			journeypattern_id INT NOT NULL REFERENCES journeypattern(journeypattern_id) DEFERRABLE INITIALLY DEFERRED,
			jpsection_id INT NOT NULL REFERENCES interned_code(code_id),
			PRIMARY KEY (journeypattern_id, jpsection_id))`},

	{"jptiminglink", `
		CREATE TABLE jptiminglink(
			jptiminglink_id INT PRIMARY KEY REFERENCES interned_code(code_id),
			source_id INT NOT NULL REFERENCES source(source_id),
			jpsection_id INT NOT NULL REFERENCES interned_code(code_id),
			routelink_id INT REFERENCES routelink(routelink_id) DEFERRABLE INITIALLY DEFERRED,
			runtime_seconds INT NOT NULL,
			from_sequence INT,
			from_stoppoint_id INT NOT NULL REFERENCES stoppoint(stoppoint_id),
			to_sequence INT,
			to_stoppoint_id INT NOT NULL REFERENCES stoppoint(stoppoint_id))`},

	{"vehiclejourney", `
		CREATE TABLE vehiclejourney(
			vehiclejourney_id INT PRIMARY KEY REFERENCES interned_code(code_id),
			source_id INT NOT NULL REFERENCES source(source_id),
			journeypattern_id INT REFERENCES journeypattern(journeypattern_id) DEFERRABLE INITIALLY DEFERRED,
			other_vehiclejourney_id INT REFERENCES vehiclejourney(vehiclejourney_id) DEFERRABLE INITIALLY DEFERRED,
			line_id INT NOT NULL REFERENCES interned_code(code_id),
			privatecode TEXT,
			days_mask SMALLINT NOT NULL,
			deptime TEXT NOT NULL,
			deptime_seconds INT NOT NULL,
			CHECK (journeypattern_id IS NOT NULL OR other_vehiclejourney_id IS NOT NULL))`},

	{"stoppoint_annotation", `
		CREATE TABLE stoppoint_annotation(
			source_id INT NOT NULL REFERENCES source(source_id),
			stoppoint_id INT NOT NULL REFERENCES stoppoint(stoppoint_id),
			name TEXT NOT NULL,
			indicator TEXT,
			locality_name TEXT,
			locality_qualifier TEXT,
			PRIMARY KEY (source_id, stoppoint_id))`},

	{"frequency_link", `
		CREATE TABLE frequency_link(
			from_stoppoint_id INT NOT NULL REFERENCES stoppoint(stoppoint_id),
			to_stoppoint_id INT NOT NULL REFERENCES stoppoint(stoppoint_id),
			weekday SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
			total_by_hour INT[] NOT NULL,
			best_by_hour INT[] NOT NULL,
			min_runtime_seconds INT NOT NULL,
			max_runtime_seconds INT NOT NULL,
			from_latitude DOUBLE PRECISION,
			from_longitude DOUBLE PRECISION,
			to_latitude DOUBLE PRECISION,
			to_longitude DOUBLE PRECISION,
			min_latitude DOUBLE PRECISION,
			min_longitude DOUBLE PRECISION,
			max_latitude DOUBLE PRECISION,
			max_longitude DOUBLE PRECISION,
			PRIMARY KEY (from_stoppoint_id, to_stoppoint_id, weekday))`},
}

// CreateTables drops and re-creates the whole schema. Destructive: the
// importer starts from an empty dataset afterwards.
func CreateTables(q Queryer) error {
	for i := len(tableDefinitions) - 1; i >= 0; i-- {
		if _, err := q.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", tableDefinitions[i].name)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", tableDefinitions[i].name, err)
		}
	}
	for _, t := range tableDefinitions {
		if _, err := q.Exec(t.create); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
	}
	return nil
}
