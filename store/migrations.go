package store

// Timestamps are unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS rooms (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT UNIQUE NOT NULL,
    status TEXT NOT NULL DEFAULT 'lobby',
    tier INTEGER NOT NULL,
    text TEXT NOT NULL,
    host_session TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    start_time INTEGER,
    end_time INTEGER
);

CREATE TABLE IF NOT EXISTS players (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_id INTEGER NOT NULL,
    session_id TEXT NOT NULL,
    name TEXT NOT NULL,
    is_host INTEGER NOT NULL DEFAULT 0,
    joined_at INTEGER NOT NULL,
    finished_at INTEGER,
    UNIQUE (room_id, session_id),
    FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE TABLE IF NOT EXISTS progress (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_id INTEGER NOT NULL,
    player_id INTEGER NOT NULL,
    current_word INTEGER NOT NULL DEFAULT 0,
    input TEXT NOT NULL DEFAULT '',
    last_update INTEGER NOT NULL,
    UNIQUE (room_id, player_id),
    FOREIGN KEY (room_id) REFERENCES rooms(id),
    FOREIGN KEY (player_id) REFERENCES players(id)
);

CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);
CREATE INDEX IF NOT EXISTS idx_players_room_id ON players(room_id);
CREATE INDEX IF NOT EXISTS idx_progress_room_id ON progress(room_id);
`
