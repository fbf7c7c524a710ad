package postgresql

// migrations returns the schema DDL by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS goals (
				id TEXT PRIMARY KEY,
				workspace_id TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_goals_workspace ON goals (workspace_id);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS run_results (
				run_id TEXT PRIMARY KEY,
				goal_id TEXT NOT NULL,
				workspace_id TEXT NOT NULL DEFAULT '',
				success BOOLEAN NOT NULL,
				status TEXT NOT NULL,
				elapsed_ms BIGINT NOT NULL DEFAULT 0,
				tasks_generated INTEGER NOT NULL DEFAULT 0,
				assets_produced INTEGER NOT NULL DEFAULT 0,
				deliverables_created INTEGER NOT NULL DEFAULT 0,
				quality_score DOUBLE PRECISION,
				error TEXT NOT NULL DEFAULT '',
				rollback_attempted BOOLEAN NOT NULL DEFAULT FALSE,
				rollback_succeeded BOOLEAN NOT NULL DEFAULT FALSE,
				outcomes JSONB,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_run_results_goal ON run_results (goal_id);
		`,
	}
}
