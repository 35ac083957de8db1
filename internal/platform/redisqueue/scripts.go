package redisqueue

import "github.com/redis/go-redis/v9"

// KEYS: jobs, waiting, delayed, completed, dead, prio, stalls
// ARGV: id, doc, runAt, now, retention, offset
var enqueueScript = redis.NewScript(`
local existing = redis.call('HGET', KEYS[1], ARGV[1])
if existing then
  local live = true
  if redis.call('ZSCORE', KEYS[5], ARGV[1]) then
    live = false
  else
    local done = redis.call('ZSCORE', KEYS[4], ARGV[1])
    if done and tonumber(done) + tonumber(ARGV[5]) <= tonumber(ARGV[4]) then
      live = false
    end
  end
  if live then
    return {0, existing}
  end
  redis.call('ZREM', KEYS[4], ARGV[1])
  redis.call('ZREM', KEYS[5], ARGV[1])
  redis.call('HDEL', KEYS[7], ARGV[1])
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[6], ARGV[1], ARGV[6])
local runAt = tonumber(ARGV[3])
if runAt > tonumber(ARGV[4]) then
  redis.call('ZADD', KEYS[3], runAt, ARGV[1])
else
  redis.call('ZADD', KEYS[2], runAt + tonumber(ARGV[6]), ARGV[1])
end
return {1}
`)

// KEYS: jobs, waiting, delayed, active, leases, prio, stalls
// ARGV: now, leaseUntil, token
var reserveScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local due = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', now)
for _, id in ipairs(due) do
  local readyAt = tonumber(redis.call('ZSCORE', KEYS[3], id))
  local offset = tonumber(redis.call('HGET', KEYS[6], id) or '0')
  redis.call('ZREM', KEYS[3], id)
  redis.call('ZADD', KEYS[2], readyAt + offset, id)
end
local head = redis.call('ZRANGE', KEYS[2], 0, 0)
if #head == 0 then
  return false
end
local id = head[1]
redis.call('ZREM', KEYS[2], id)
redis.call('ZADD', KEYS[4], ARGV[2], id)
redis.call('HSET', KEYS[5], id, ARGV[3])
local stalls = tonumber(redis.call('HGET', KEYS[7], id) or '0')
return {redis.call('HGET', KEYS[1], id), stalls}
`)

// KEYS: active, leases, completed
// ARGV: id, token, now
var ackScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], ARGV[1]) ~= ARGV[2] then
  return -1
end
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// KEYS: jobs, active, leases, waiting, delayed, prio
// ARGV: id, token, doc, runAt, now
var retryScript = redis.NewScript(`
if redis.call('HGET', KEYS[3], ARGV[1]) ~= ARGV[2] then
  return -1
end
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
local runAt = tonumber(ARGV[4])
if runAt > tonumber(ARGV[5]) then
  redis.call('ZADD', KEYS[5], runAt, ARGV[1])
else
  local offset = tonumber(redis.call('HGET', KEYS[6], ARGV[1]) or '0')
  redis.call('ZADD', KEYS[4], runAt + offset, ARGV[1])
end
return 1
`)

// KEYS: jobs, active, leases, dead
// ARGV: id, token, doc, now
var deadLetterScript = redis.NewScript(`
if redis.call('HGET', KEYS[3], ARGV[1]) ~= ARGV[2] then
  return -1
end
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('ZADD', KEYS[4], ARGV[4], ARGV[1])
return 1
`)

// KEYS: jobs, active, leases, waiting, completed, prio, stalls, dead
// ARGV: now, completedCutoff, maxStalls
// Returns {requeued, deadId...}.
var reapScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local maxStalls = tonumber(ARGV[3])
local requeued = 0
local dead = {}
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', '(' .. ARGV[1])
for _, id in ipairs(expired) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('HDEL', KEYS[3], id)
  local stalls = redis.call('HINCRBY', KEYS[7], id, 1)
  if stalls > maxStalls then
    redis.call('ZADD', KEYS[8], now, id)
    table.insert(dead, id)
  else
    local offset = tonumber(redis.call('HGET', KEYS[6], id) or '0')
    redis.call('ZADD', KEYS[4], now + offset, id)
    requeued = requeued + 1
  end
end
local old = redis.call('ZRANGEBYSCORE', KEYS[5], '-inf', ARGV[2])
for _, id in ipairs(old) do
  redis.call('ZREM', KEYS[5], id)
  redis.call('HDEL', KEYS[1], id)
  redis.call('HDEL', KEYS[6], id)
  redis.call('HDEL', KEYS[7], id)
end
local out = {requeued}
for _, id in ipairs(dead) do
  table.insert(out, id)
end
return out
`)

// KEYS: jobs, dead
// ARGV: id, doc
var markDeadScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[2], ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// KEYS: jobs, dead, waiting, prio, stalls
// ARGV: id, doc, now
var requeueDeadScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[2], ARGV[1]) then
  return 0
end
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[5], ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
local offset = tonumber(redis.call('HGET', KEYS[4], ARGV[1]) or '0')
redis.call('ZADD', KEYS[3], tonumber(ARGV[3]) + offset, ARGV[1])
return 1
`)
