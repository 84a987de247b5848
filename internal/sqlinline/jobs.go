// Package sqlinline holds the audited SQL statements executed through
// infra.SQLRunner. Every statement carries a --sql <uuid> marker on its
// first line; internal/tools/sqllint enforces the convention.
package sqlinline

const QInsertJob = `--sql ae8852e6-47f8-4d20-98ea-9119659c64b2
insert into jobs (id, owner_token, status, prompt, duration_seconds, genre, created_at, updated_at, expires_at)
values ($1, $2, 'queued', $3, $4, $5, now(), now(), now() + make_interval(secs => $6))
returning id, owner_token, status, prompt, duration_seconds, genre, result_key, error_summary, created_at, updated_at, expires_at;
`

const QSelectJobForOwner = `--sql fd9ff087-f613-40e9-8192-8b632cc0e2aa
select id, owner_token, status, prompt, duration_seconds, genre, result_key, error_summary, created_at, updated_at, expires_at
from jobs
where id = $1 and owner_token = $2 and expires_at > now();
`

const QTransitionJob = `--sql fec27826-e48a-44ae-8d52-f2d8584fec32
update jobs
set status = $3,
    result_key = coalesce(nullif($4, ''), result_key),
    error_summary = coalesce(nullif($5, ''), error_summary),
    updated_at = now()
where id = $1 and status = $2
returning id, owner_token, status, prompt, duration_seconds, genre, result_key, error_summary, created_at, updated_at, expires_at;
`

const QSelectJobStatus = `--sql 0877236c-8323-45bf-8e9e-a9e47b1d50c8
select status from jobs where id = $1;
`

const QDeleteExpiredJobs = `--sql 40491448-01dc-44bd-ab73-4552cf2f4a69
delete from jobs
where expires_at <= $1
returning result_key;
`

const QReclaimStaleJobs = `--sql 9be70a3c-6d11-4df0-8f7d-3c0a4be2d41e
update jobs
set status = 'queued',
    updated_at = now()
where status in ('queued', 'processing')
  and updated_at <= $1
  and expires_at > now()
returning id;
`
