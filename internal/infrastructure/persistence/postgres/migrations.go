package postgres

// Migrations returns the engine's embedded schema migrations in order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_students", UpSQL: migration001Up},
		{Version: 2, Name: "create_stages", UpSQL: migration002Up},
		{Version: 3, Name: "create_search_indexes", UpSQL: migration003Up},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
	id UUID PRIMARY KEY,
	student_id TEXT NOT NULL,
	name TEXT NOT NULL,
	school_name TEXT,
	administration TEXT,
	region TEXT,
	educational_stage_id TEXT NOT NULL,
	class_name TEXT,
	subjects JSONB NOT NULL DEFAULT '[]'::jsonb,
	average DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS educational_stages (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	name_en TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT '',
	regions JSONB NOT NULL DEFAULT '[]'::jsonb,
	display_order INTEGER NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);
`

const migration003Up = `
CREATE INDEX IF NOT EXISTS idx_students_student_id
	ON students (student_id);
CREATE INDEX IF NOT EXISTS idx_students_stage
	ON students (educational_stage_id);
CREATE INDEX IF NOT EXISTS idx_students_stage_region
	ON students (educational_stage_id, region);
CREATE UNIQUE INDEX IF NOT EXISTS idx_students_seat_scope
	ON students (student_id, educational_stage_id, COALESCE(region, ''));
`
