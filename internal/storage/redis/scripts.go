package redis

const (
	// appendEventScript atomically assigns the next event id, stores the
	// event, and indexes it by timestamp. The caller serializes the event
	// without its id; readers take the id from the hash field.
	appendEventScript = `
local seq_key = KEYS[1]    -- taglock:events:seq
local index_key = KEYS[2]  -- taglock:events:by_time
local prefix = ARGV[1]     -- taglock:event:
local timestamp = ARGV[2]  -- epoch milliseconds
local data = ARGV[3]       -- event JSON

local id = redis.call('INCR', seq_key)
local event_key = prefix .. id

redis.call('HSET', event_key, 'id', id, 'data', data)
redis.call('ZADD', index_key, timestamp, id)

return id
`

	// openSessionScript atomically opens a blocking session. Returns -1
	// when a session is already open so at most one can ever be open.
	openSessionScript = `
local open_key = KEYS[1]   -- taglock:sessions:open
local seq_key = KEYS[2]    -- taglock:sessions:seq
local index_key = KEYS[3]  -- taglock:sessions:by_start
local prefix = ARGV[1]     -- taglock:session:
local start_ms = ARGV[2]
local data = ARGV[3]       -- session JSON without id

if redis.call('EXISTS', open_key) == 1 then
  return -1
end

local id = redis.call('INCR', seq_key)
local session_key = prefix .. id

redis.call('HSET', session_key, 'id', id, 'data', data)
redis.call('SET', open_key, id)
redis.call('ZADD', index_key, start_ms, id)

return id
`

	// closeSessionScript stores the closed session and clears the open
	// marker when it points at this session. Returns 0 when the session
	// does not exist.
	closeSessionScript = `
local session_key = KEYS[1]  -- taglock:session:{id}
local open_key = KEYS[2]     -- taglock:sessions:open
local id = ARGV[1]
local data = ARGV[2]         -- closed session JSON

if redis.call('EXISTS', session_key) == 0 then
  return 0
end

redis.call('HSET', session_key, 'data', data)

local open_id = redis.call('GET', open_key)
if open_id == id then
  redis.call('DEL', open_key)
end

return 1
`
)
